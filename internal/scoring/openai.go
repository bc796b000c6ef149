// Package scoring asks a chat model for a short investment assessment of a
// finished analysis.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deal-analyzer/internal/models"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	Provider     = "openai"
	DefaultModel = "gpt-4o-mini"
)

var (
	ErrEmptyResponse     = errors.New("SCORING_EMPTY_RESPONSE")
	ErrMalformedResponse = errors.New("SCORING_MALFORMED_RESPONSE")
)

const systemPrompt = `You are a residential real-estate investment analyst. You receive the computed metrics of one rental property deal and the investor's criteria verdicts.
Reply with a single JSON object and nothing else:
{"score": <integer 0-100>, "verdict": "buy" | "consider" | "pass", "summary": "<two or three sentences>", "risks": ["<short risk>", ...]}
Base the score on cash flow, cap rate, cash-on-cash return and how the deal compares with the criteria. Do not restate the numbers you were given.`

type OpenAIScorer struct {
	cli       oa.Client
	model     string
	maxTokens int64
	now       func() time.Time
}

// NewOpenAIScorer builds a scorer. baseURL may point at any OpenAI-compatible
// endpoint; empty means the public API.
func NewOpenAIScorer(apiKey, model, baseURL string) *OpenAIScorer {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIScorer{
		cli:       oa.NewClient(opts...),
		model:     model,
		maxTokens: 400,
		now:       time.Now,
	}
}

type assessmentPayload struct {
	Score   int      `json:"score"`
	Verdict string   `json:"verdict"`
	Summary string   `json:"summary"`
	Risks   []string `json:"risks"`
}

// Score never modifies result.
func (s *OpenAIScorer) Score(ctx context.Context, result models.AnalysisResult) (models.Assessment, error) {
	resp, err := s.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(s.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(buildPrompt(result)),
		},
		MaxTokens: oa.Int(s.maxTokens),
	})
	if err != nil {
		return models.Assessment{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return models.Assessment{}, ErrEmptyResponse
	}

	payload, err := parseAssessment(resp.Choices[0].Message.Content)
	if err != nil {
		return models.Assessment{}, err
	}
	return models.Assessment{
		Score:    payload.Score,
		Verdict:  payload.Verdict,
		Summary:  payload.Summary,
		Risks:    payload.Risks,
		Provider: Provider,
		ScoredAt: s.now().UTC(),
	}, nil
}

func parseAssessment(content string) (assessmentPayload, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var p assessmentPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if p.Score < 0 || p.Score > 100 {
		return p, fmt.Errorf("%w: score %d out of range", ErrMalformedResponse, p.Score)
	}
	p.Verdict = strings.ToLower(strings.TrimSpace(p.Verdict))
	return p, nil
}

func buildPrompt(r models.AnalysisResult) string {
	p := r.Property
	f := r.Financing
	cf := r.CashFlow

	var b strings.Builder
	fmt.Fprintf(&b, "Property: %s", p.Address)
	if p.City != "" || p.State != "" {
		fmt.Fprintf(&b, ", %s %s", p.City, p.State)
	}
	fmt.Fprintf(&b, "\nType: %s, %d bed / %.1f bath, %d sqft, built %d\n", p.PropertyType, p.Bedrooms, p.Bathrooms, p.SquareFootage, p.YearBuilt)
	fmt.Fprintf(&b, "Purchase price: $%.0f, monthly rent: $%.0f\n", p.PurchasePrice, p.MonthlyRent)
	fmt.Fprintf(&b, "Financing: %s, down %.1f%%, rate %.3f%%, payment $%.2f/mo, cash needed $%.0f\n",
		f.FundingSource, f.DownPaymentFraction.Percentage(), f.AnnualRate.Percentage(), f.MonthlyPayment, f.TotalCashNeeded)
	fmt.Fprintf(&b, "Cash flow: $%.2f/mo, NOI $%.0f/yr, cap rate %.2f%%, cash-on-cash %.2f%%, 1%% rule ratio %.4f\n",
		cf.MonthlyCashFlow, cf.NetOperatingIncome, cf.CapRate.Percentage(), cf.CashOnCash.Percentage(), cf.OnePercentRatio)
	if st := r.ShortTerm; st != nil {
		fmt.Fprintf(&b, "Short-term projection: $%.2f/mo cash flow", st.MonthlyCashFlow)
		if st.ProjectedAnnualRevenue != nil {
			fmt.Fprintf(&b, ", $%.0f/yr revenue", *st.ProjectedAnnualRevenue)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Cap rate tier: %s, cash-on-cash tier: %s\n", r.Evaluation.CapRate.Tier, r.Evaluation.CashOnCash.Tier)
	for _, c := range r.Evaluation.Checks {
		fmt.Fprintf(&b, "Check %s: %t\n", c.Name, c.Passed)
	}
	fmt.Fprintf(&b, "Meets investor criteria: %t\n", r.MeetsCriteria)
	if p.Description != "" {
		fmt.Fprintf(&b, "Listing description: %s\n", p.Description)
	}
	return b.String()
}
