package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deal-analyzer/internal/admission/pool"
	stderrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/observability"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================================
// Test fakes
// ==========================================

type fakeRates struct {
	rate  models.Fraction
	err   error
	calls atomic.Int32
	hook  func()
}

func (f *fakeRates) FetchMortgageRate(ctx context.Context, loanAmount float64, termMonths int, zipCode string) (models.Fraction, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	return f.rate, f.err
}

type hookCriteria struct {
	criteria models.CriteriaConfig
	hook     func()
}

func (h *hookCriteria) Name() string { return "hook" }

func (h *hookCriteria) LoadCriteria(ctx context.Context) (models.CriteriaConfig, error) {
	if h.hook != nil {
		h.hook()
	}
	return h.criteria.Clone(), nil
}

type fakeScorer struct {
	assessment models.Assessment
	err        error
	calls      atomic.Int32
}

func (f *fakeScorer) Score(ctx context.Context, result models.AnalysisResult) (models.Assessment, error) {
	f.calls.Add(1)
	return f.assessment, f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []models.AnalysisResult
}

func (f *fakeNotifier) Notify(ctx context.Context, result models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

// ==========================================
// Helpers
// ==========================================

func scenarioCriteria() models.CriteriaConfig {
	c := models.DefaultCriteria()
	c.CapRate.Minimum = 0.04
	return c
}

func scenarioRequest() models.AnalysisRequest {
	return models.AnalysisRequest{
		Property: models.PropertyFacts{
			Address:       "123 Main St",
			City:          "Columbus",
			State:         "OH",
			ZipCode:       "43004",
			PropertyType:  "Single Family",
			PurchasePrice: 200000,
			MonthlyRent:   2200,
		},
		FundingSource: "conventional",
	}
}

func newOrchestrator(t *testing.T, criteria resolver.CriteriaSource, rates resolver.RateSource, deps Dependencies) *Orchestrator {
	t.Helper()
	deps.Resolver = resolver.New(criteria, rates, nil, resolver.Options{RateTimeout: 500 * time.Millisecond}, logger.NewNoOpLogger())
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	return New(deps, Config{}, logger.NewTestLogger(t))
}

// ==========================================
// Scenarios
// ==========================================

func TestAnalyze_RateFailureFallsBack(t *testing.T) {
	rates := &fakeRates{err: errors.New("rate api: 503")}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	result, err := o.Analyze(context.Background(), scenarioRequest())
	require.NoError(t, err)

	assert.EqualValues(t, 1, rates.calls.Load())
	assert.Equal(t, resolver.DefaultFallbackRate, result.Financing.AnnualRate)
	assert.Equal(t, resolver.SourceFallback, result.RateSource)
	assert.True(t, models.HasFlag(result.Flags, models.FlagDependencyDegraded))

	assert.InDelta(t, 40000, result.Financing.DownPayment, 1e-6)
	assert.InDelta(t, 160000, result.Financing.LoanAmount, 1e-6)
	assert.InDelta(t, 1064.48, result.Financing.MonthlyPayment, 0.01)
	assert.True(t, result.CashFlow.PassesOnePercentRule)
	assert.InDelta(t, 0.011, result.CashFlow.OnePercentRatio, 1e-9)
	assert.True(t, result.CashFlow.CashFlowPositive)
	assert.GreaterOrEqual(t, result.CashFlow.CapRate.Float64(), 0.04)
	assert.True(t, result.MeetsCriteria)
	assert.Equal(t, result.Evaluation.MeetsCriteria, result.MeetsCriteria)

	assert.NotEmpty(t, result.ID)
	assert.False(t, result.CreatedAt.IsZero())
	assert.Nil(t, result.ShortTerm)
	assert.Nil(t, result.Assessment)
}

func TestAnalyze_LiveRate(t *testing.T) {
	rates := &fakeRates{rate: 0.065}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	result, err := o.Analyze(context.Background(), scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, models.Fraction(0.065), result.Financing.AnnualRate)
	assert.Equal(t, resolver.SourceLive, result.RateSource)
	assert.False(t, models.HasFlag(result.Flags, models.FlagDependencyDegraded))
}

func TestAnalyze_OverMaxPriceFails(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	req := scenarioRequest()
	req.Property.PurchasePrice = 600000
	req.Property.MonthlyRent = 9000

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.MeetsCriteria)
}

func TestAnalyze_NoZipSkipsRateFetch(t *testing.T) {
	rates := &fakeRates{rate: 0.05}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	req := scenarioRequest()
	req.Property.ZipCode = ""

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, rates.calls.Load())
	assert.Equal(t, resolver.DefaultFallbackRate, result.Financing.AnnualRate)
	assert.Equal(t, resolver.SourceDefault, result.RateSource)
	assert.False(t, models.HasFlag(result.Flags, models.FlagDependencyDegraded))
}

func TestAnalyze_CallerMortgageSkipsRateFetch(t *testing.T) {
	rates := &fakeRates{rate: 0.05}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	req := scenarioRequest()
	req.Mortgage = &models.MortgageOverride{MonthlyPayment: models.Float(1000), AnnualRate: models.Float(6.5)}

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, rates.calls.Load())
	assert.Equal(t, RateSourceCaller, result.RateSource)
	assert.Equal(t, 1000.0, result.Financing.MonthlyPayment)
	assert.InDelta(t, 0.065, result.Financing.AnnualRate.Float64(), 1e-9)
	assert.Equal(t, models.PaymentCaller, result.Financing.PaymentSource)
	assert.True(t, models.HasFlag(result.Flags, models.FlagCallerPayment))
}

func TestAnalyze_CashPurchaseSkipsRateFetch(t *testing.T) {
	rates := &fakeRates{rate: 0.05}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	req := scenarioRequest()
	req.FundingSource = "cash"

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, rates.calls.Load())
	assert.Equal(t, RateSourceNotFinanced, result.RateSource)
	assert.Zero(t, result.Financing.LoanAmount)
	assert.Zero(t, result.Financing.MonthlyPayment)
	assert.InDelta(t, 200000, result.Financing.DownPayment, 1e-6)
	assert.False(t, models.HasFlag(result.Flags, models.FlagZeroRateAmortization))
	assert.False(t, models.HasFlag(result.Flags, models.FlagDependencyDegraded))
}

func TestAnalyze_FetchesRunConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	overlapped := make(chan bool, 2)
	rendezvous := func() {
		arrived.Done()
		done := make(chan struct{})
		go func() {
			arrived.Wait()
			close(done)
		}()
		select {
		case <-done:
			overlapped <- true
		case <-time.After(300 * time.Millisecond):
			overlapped <- false
		}
	}

	criteria := &hookCriteria{criteria: scenarioCriteria(), hook: rendezvous}
	rates := &fakeRates{rate: 0.06, hook: rendezvous}
	o := newOrchestrator(t, criteria, rates, Dependencies{})

	_, err := o.Analyze(context.Background(), scenarioRequest())
	require.NoError(t, err)
	assert.True(t, <-overlapped)
	assert.True(t, <-overlapped)
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AnalysisRequest)
		fields []string
	}{
		{
			name:   "missing address",
			mutate: func(r *models.AnalysisRequest) { r.Property.Address = "  " },
			fields: []string{"address"},
		},
		{
			name:   "missing price",
			mutate: func(r *models.AnalysisRequest) { r.Property.PurchasePrice = 0 },
			fields: []string{"purchasePrice"},
		},
		{
			name: "missing rent and price",
			mutate: func(r *models.AnalysisRequest) {
				r.Property.MonthlyRent = 0
				r.Property.PurchasePrice = -1
			},
			fields: []string{"purchasePrice", "monthlyRent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := &fakeRates{rate: 0.06}
			o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

			req := scenarioRequest()
			tt.mutate(&req)

			_, err := o.Analyze(context.Background(), req)
			stdErr := stderrors.AsStandardError(err)
			require.NotNil(t, stdErr)
			assert.Equal(t, stderrors.ErrCodeValidation, stdErr.Code)
			assert.Equal(t, tt.fields, stdErr.Metadata["fields"])
			assert.Zero(t, rates.calls.Load())
		})
	}
}

func TestAnalyze_ShortTermListingWithoutRent(t *testing.T) {
	rates := &fakeRates{rate: 0.06}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), rates, Dependencies{})

	req := scenarioRequest()
	req.Property.MonthlyRent = 0
	req.Mode = models.ShortTermRental
	req.STRMetrics = &models.STRMetrics{AverageDailyRate: models.Float(600), OccupancyRate: models.Float(0.9)}

	result, err := o.Analyze(context.Background(), req)
	stdErr := stderrors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, stderrors.ErrCodeValidation, stdErr.Code)
	assert.Equal(t, []string{"monthlyRent"}, stdErr.Metadata["fields"])
	assert.Empty(t, result.ID)
	assert.Zero(t, rates.calls.Load())
}

func TestAnalyze_ShortTermComparison(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	req := scenarioRequest()
	req.STRMetrics = &models.STRMetrics{AverageDailyRate: models.Float(200), OccupancyRate: models.Float(70)}

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.ShortTerm)
	assert.Equal(t, models.LongTermRental, result.CashFlow.Mode)
	assert.InDelta(t, 2200, result.CashFlow.GrossMonthlyIncome, 1e-6)
	assert.Equal(t, models.ShortTermRental, result.ShortTerm.Mode)
	assert.InDelta(t, 200*30*0.70, result.ShortTerm.GrossMonthlyIncome, 1e-6)
	require.NotNil(t, result.Property.OccupancyRate)
	assert.Equal(t, 70.0, *result.Property.OccupancyRate)
}

func TestAnalyze_ShortTermHeadline(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	req := scenarioRequest()
	req.Mode = models.ShortTermRental
	req.STRMetrics = &models.STRMetrics{AverageDailyRate: models.Float(200), OccupancyRate: models.Float(0.7)}

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ShortTermRental, result.CashFlow.Mode)
	require.NotNil(t, result.ShortTerm)
	assert.Equal(t, result.CashFlow.MonthlyCashFlow, result.ShortTerm.MonthlyCashFlow)
}

func TestAnalyze_UnknownFundingSource(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	req := scenarioRequest()
	req.FundingSource = "seller-carry"

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.FundingConventional, result.Financing.FundingSource)
	assert.Equal(t, models.Fraction(0.20), result.Financing.DownPaymentFraction)
	assert.True(t, models.HasFlag(result.Flags, models.FlagFundingSourceDefaulted))
}

func TestAnalyze_EmbeddedFundingSource(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	req := scenarioRequest()
	req.FundingSource = ""
	req.Property.FundingSource = "FHA"

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.FundingFHA, result.Financing.FundingSource)
	assert.False(t, models.HasFlag(result.Flags, models.FlagFundingSourceDefaulted))
}

// ==========================================
// Scoring and alerts
// ==========================================

func TestAnalyze_ScoringIsBestEffort(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("model overloaded")}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{Scorer: scorer})

	req := scenarioRequest()
	req.Score = true

	result, err := o.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, scorer.calls.Load())
	assert.Nil(t, result.Assessment)
	assert.True(t, result.MeetsCriteria)
}

func TestAnalyze_ScoreAttached(t *testing.T) {
	scorer := &fakeScorer{assessment: models.Assessment{Score: 82, Verdict: "buy", Provider: "test"}}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{Scorer: scorer})

	unscored := scenarioRequest()
	result, err := o.Analyze(context.Background(), unscored)
	require.NoError(t, err)
	assert.Nil(t, result.Assessment)
	assert.Zero(t, scorer.calls.Load())

	scored := scenarioRequest()
	scored.Score = true
	result, err = o.Analyze(context.Background(), scored)
	require.NoError(t, err)
	require.NotNil(t, result.Assessment)
	assert.Equal(t, 82, result.Assessment.Score)
}

func TestAnalyze_NotifiesOnlyMatches(t *testing.T) {
	notifier := &fakeNotifier{}
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{Notifier: notifier})

	_, err := o.Analyze(context.Background(), scenarioRequest())
	require.NoError(t, err)

	failing := scenarioRequest()
	failing.Property.PurchasePrice = 600000
	_, err = o.Analyze(context.Background(), failing)
	require.NoError(t, err)

	require.Len(t, notifier.results, 1)
	assert.Equal(t, "123 Main St", notifier.results[0].Property.Address)
}

func TestAnalyze_Deterministic(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.0625}, Dependencies{Pools: pool.NewPools(1, 1)})
	o.newID = func() string { return "fixed" }
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	first, err := o.Analyze(context.Background(), scenarioRequest())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := o.Analyze(context.Background(), scenarioRequest())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	o := newOrchestrator(t, resolver.NewStaticCriteriaSource(scenarioCriteria()), &fakeRates{rate: 0.06}, Dependencies{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Analyze(ctx, scenarioRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
