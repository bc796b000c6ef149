package scoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deal-analyzer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, content string) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var requests []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		_ = json.Unmarshal(body, &req)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func sampleResult() models.AnalysisResult {
	return models.AnalysisResult{
		ID: "a-1",
		Property: models.PropertyFacts{
			Address:       "123 Main St",
			City:          "Columbus",
			State:         "OH",
			PurchasePrice: 200000,
			MonthlyRent:   2200,
		},
		Financing: models.FinancingResult{
			FundingSource:       models.FundingConventional,
			DownPaymentFraction: 0.2,
			AnnualRate:          0.07,
			MonthlyPayment:      1064.48,
		},
		CashFlow: models.CashFlowMetrics{
			MonthlyCashFlow: 395.52,
			CapRate:         0.0876,
			CashOnCash:      0.0969,
		},
		MeetsCriteria: true,
	}
}

func TestOpenAIScorer_Score(t *testing.T) {
	server, requests := completionServer(t, http.StatusOK,
		"```json\n{\"score\": 78, \"verdict\": \"Buy\", \"summary\": \"Solid cash flow.\", \"risks\": [\"older roof\"]}\n```")

	scorer := NewOpenAIScorer("test-key", "", server.URL+"/")
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	scorer.now = func() time.Time { return fixed }

	a, err := scorer.Score(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, 78, a.Score)
	assert.Equal(t, "buy", a.Verdict)
	assert.Equal(t, "Solid cash flow.", a.Summary)
	assert.Equal(t, []string{"older roof"}, a.Risks)
	assert.Equal(t, Provider, a.Provider)
	assert.Equal(t, fixed, a.ScoredAt)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, DefaultModel, req["model"])
	messages, ok := req["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]interface{})
	assert.Contains(t, user["content"], "123 Main St")
	assert.Contains(t, user["content"], "Meets investor criteria: true")
}

func TestOpenAIScorer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		wantIs  error
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "empty content", status: http.StatusOK, content: "  ", wantIs: ErrEmptyResponse},
		{name: "prose instead of json", status: http.StatusOK, content: "Looks like a good deal!", wantIs: ErrMalformedResponse},
		{name: "score out of range", status: http.StatusOK, content: `{"score": 140, "verdict": "buy"}`, wantIs: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := completionServer(t, tt.status, tt.content)
			scorer := NewOpenAIScorer("test-key", "gpt-4o", server.URL+"/")

			_, err := scorer.Score(context.Background(), sampleResult())
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestBuildPrompt_ShortTerm(t *testing.T) {
	r := sampleResult()
	revenue := 51100.0
	r.ShortTerm = &models.CashFlowMetrics{MonthlyCashFlow: 220, ProjectedAnnualRevenue: &revenue}

	prompt := buildPrompt(r)
	assert.Contains(t, prompt, "Short-term projection: $220.00/mo cash flow, $51100/yr revenue")
	assert.Contains(t, prompt, "rate 7.000%")
}
