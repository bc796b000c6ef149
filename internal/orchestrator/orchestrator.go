// Package orchestrator runs one deal analysis end to end: resolve criteria
// and mortgage rate, compute financing, cash flow and verdicts, then attach
// the optional assessment.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deal-analyzer/internal/admission/pool"
	stderrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/metrics"
	"deal-analyzer/internal/common/observability"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/resolver"
	"deal-analyzer/internal/underwriting/cashflow"
	"deal-analyzer/internal/underwriting/evaluator"
	"deal-analyzer/internal/underwriting/financing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RateSourceCaller marks a rate or payment supplied with the request.
const RateSourceCaller = "caller"

// RateSourceNotFinanced marks a cash purchase, for which no rate is looked up.
const RateSourceNotFinanced = "not-financed"

// Scorer produces the optional narrative assessment of a finished analysis.
type Scorer interface {
	Score(ctx context.Context, result models.AnalysisResult) (models.Assessment, error)
}

// Notifier is told about analyses that meet the investor's criteria.
type Notifier interface {
	Notify(ctx context.Context, result models.AnalysisResult) error
}

// Resolver supplies criteria and mortgage rates. It never fails.
type Resolver interface {
	Criteria(ctx context.Context) resolver.CriteriaResolution
	MortgageRate(ctx context.Context, loanAmount float64, termMonths int, zipCode string) resolver.RateResolution
}

type Dependencies struct {
	Resolver      Resolver
	Pools         *pool.Pools
	Scorer        Scorer
	Notifier      Notifier
	Observability *observability.Observability
}

type Config struct {
	TermMonths     int
	ScoringTimeout time.Duration
	NotifyTimeout  time.Duration
}

type Orchestrator struct {
	deps   Dependencies
	config Config
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func New(deps Dependencies, config Config, log logger.Logger) *Orchestrator {
	if deps.Pools == nil {
		deps.Pools = pool.NewPools(8, 2)
	}
	if config.TermMonths <= 0 {
		config.TermMonths = financing.DefaultTermMonths
	}
	if config.ScoringTimeout <= 0 {
		config.ScoringTimeout = 20 * time.Second
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 5 * time.Second
	}
	return &Orchestrator{
		deps:   deps,
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Criteria returns the criteria snapshot an analysis started now would use.
func (o *Orchestrator) Criteria(ctx context.Context) resolver.CriteriaResolution {
	return o.deps.Resolver.Criteria(ctx)
}

// Analyze returns a *errors.StandardError with code VALIDATION_ERROR when the
// request lacks identifying data. Dependency failures never surface here;
// they degrade to fallback values and are reported as result flags. The only
// other error is ctx ending before the inputs were resolved.
func (o *Orchestrator) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	start := o.now()
	ctx, span := o.deps.Observability.StartSpan(ctx, "orchestrator.Analyze")
	defer span.End()

	if err := validateRequest(req); err != nil {
		metrics.AnalysesTotal.WithLabelValues("invalid").Inc()
		o.deps.Observability.RecordAnalysis(ctx, "invalid", o.now().Sub(start))
		return models.AnalysisResult{}, err
	}

	property := req.EffectiveProperty()
	var flags []models.Flag

	key := req.FundingSourceKey()
	funding, known := models.ParseFundingSource(key)
	if !known && strings.TrimSpace(key) != "" {
		flags = append(flags, models.Flag{
			Code:    models.FlagFundingSourceDefaulted,
			Message: fmt.Sprintf("unknown funding source %q, using %s", key, funding),
			Source:  "orchestrator",
		})
	}

	term := o.config.TermMonths
	if req.Mortgage != nil && req.Mortgage.TermMonths > 0 {
		term = req.Mortgage.TermMonths
	}

	inputs, err := o.resolveInputs(ctx, req, property, funding, term)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("resolve inputs: %w", err)
	}
	flags = append(flags, inputs.flags...)
	criteria := inputs.criteria

	_, calcSpan := o.deps.Observability.StartSpan(ctx, "orchestrator.compute",
		attribute.String("funding_source", string(funding)),
		attribute.String("rate_source", inputs.rateSource),
	)
	fin := financing.Calculate(financing.Input{
		PurchasePrice:  property.PurchasePrice,
		FundingSource:  funding,
		Criteria:       criteria,
		AnnualRate:     inputs.rate,
		TermMonths:     term,
		MonthlyPayment: inputs.payment,
	})

	headlineMode := models.LongTermRental
	if req.Mode == models.ShortTermRental {
		headlineMode = models.ShortTermRental
	}
	cf := cashflow.Compute(cashflow.Input{
		Property:  property,
		Financing: fin,
		Criteria:  criteria,
		Overrides: req.Expenses,
		Mode:      headlineMode,
	})

	var shortTerm *models.CashFlowMetrics
	if property.HasShortTermData() {
		if cf.Mode == models.ShortTermRental {
			shortTerm = &cf
		} else {
			st := cashflow.Compute(cashflow.Input{
				Property:  property,
				Financing: fin,
				Criteria:  criteria,
				Overrides: req.Expenses,
				Mode:      models.ShortTermRental,
			})
			shortTerm = &st
		}
	}

	eval := evaluator.Evaluate(evaluator.Input{
		Property:  property,
		Metrics:   cf,
		ShortTerm: shortTerm,
		Criteria:  criteria,
	})
	calcSpan.End()

	flags = append(flags, fin.Flags...)
	flags = append(flags, cf.Flags...)
	if shortTerm != nil && shortTerm != &cf {
		flags = append(flags, shortTerm.Flags...)
	}
	flags = append(flags, eval.Flags...)

	result := models.AnalysisResult{
		ID:            o.newID(),
		Property:      property,
		CriteriaName:  criteria.Name,
		Financing:     fin,
		CashFlow:      cf,
		ShortTerm:     shortTerm,
		Evaluation:    eval,
		MeetsCriteria: eval.MeetsCriteria,
		RateSource:    inputs.rateSource,
		Flags:         flags,
		CreatedAt:     o.now().UTC(),
	}

	if req.Score {
		result = o.score(ctx, result)
	}
	if result.MeetsCriteria {
		o.notify(ctx, result)
	}

	outcome := "fails_criteria"
	if result.MeetsCriteria {
		outcome = "meets_criteria"
	}
	metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	o.deps.Observability.RecordAnalysis(ctx, outcome, o.now().Sub(start))

	o.logger.Info("Deal analyzed", map[string]interface{}{
		"analysisId":    result.ID,
		"address":       property.Address,
		"meetsCriteria": result.MeetsCriteria,
		"rateSource":    result.RateSource,
		"flags":         len(result.Flags),
	})
	return result, nil
}

type resolvedInputs struct {
	criteria   models.CriteriaConfig
	rate       models.Fraction
	payment    *float64
	rateSource string
	flags      []models.Flag
}

// resolveInputs fetches criteria and the mortgage rate concurrently through
// the light pool. A caller-supplied mortgage or a cash purchase skips the
// rate lookup.
func (o *Orchestrator) resolveInputs(ctx context.Context, req models.AnalysisRequest, property models.PropertyFacts, funding models.FundingSource, term int) (resolvedInputs, error) {
	ctx, span := o.deps.Observability.StartSpan(ctx, "orchestrator.resolveInputs")
	defer span.End()

	var out resolvedInputs
	var criteriaRes resolver.CriteriaResolution
	var rateRes resolver.RateResolution

	fetches := []func(context.Context) error{
		func(ctx context.Context) error {
			criteriaRes = o.deps.Resolver.Criteria(ctx)
			return nil
		},
	}

	if req.Mortgage.Supplied() {
		out.rateSource = RateSourceCaller
		if req.Mortgage.AnnualRate != nil {
			out.rate = models.NormalizeFraction(*req.Mortgage.AnnualRate)
		}
		if req.Mortgage.MonthlyPayment != nil {
			p := *req.Mortgage.MonthlyPayment
			out.payment = &p
		}
	} else if !funding.Financed() {
		out.rateSource = RateSourceNotFinanced
	} else {
		// The criteria are fetched alongside the rate, so the quoted loan uses
		// the funding source's fraction even under a criteria-midpoint basis.
		loan := property.PurchasePrice * (1 - funding.DownPaymentFraction().Float64())
		fetches = append(fetches, func(ctx context.Context) error {
			rateRes = o.deps.Resolver.MortgageRate(ctx, loan, term, property.ZipCode)
			return nil
		})
	}

	if err := o.deps.Pools.Light.Run(ctx, fetches...); err != nil {
		return out, err
	}

	out.criteria = criteriaRes.Criteria
	out.flags = append(out.flags, criteriaRes.Flags...)
	if out.rateSource == "" {
		out.rate = rateRes.Rate
		out.rateSource = rateRes.Source
		out.flags = append(out.flags, rateRes.Flags...)
	}
	return out, nil
}

// score is best-effort: any failure leaves result unchanged.
func (o *Orchestrator) score(ctx context.Context, result models.AnalysisResult) models.AnalysisResult {
	if o.deps.Scorer == nil {
		metrics.ScoringOutcomes.WithLabelValues("disabled").Inc()
		return result
	}

	ctx, span := o.deps.Observability.StartSpan(ctx, "orchestrator.score")
	defer span.End()

	var assessment models.Assessment
	err := o.deps.Pools.Heavy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.config.ScoringTimeout)
		defer cancel()
		a, err := o.deps.Scorer.Score(ctx, result)
		if err != nil {
			return err
		}
		assessment = a
		return nil
	})
	if err != nil {
		metrics.ScoringOutcomes.WithLabelValues("failed").Inc()
		o.logger.Warn("Scoring failed, returning analysis without assessment", map[string]interface{}{
			"analysisId": result.ID,
			"error":      err.Error(),
		})
		return result
	}

	metrics.ScoringOutcomes.WithLabelValues("scored").Inc()
	return result.WithAssessment(assessment)
}

func (o *Orchestrator) notify(ctx context.Context, result models.AnalysisResult) {
	if o.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.config.NotifyTimeout)
	defer cancel()
	err := o.deps.Pools.Light.Do(ctx, func(ctx context.Context) error {
		return o.deps.Notifier.Notify(ctx, result)
	})
	if err != nil {
		o.logger.Warn("Deal alert not sent", map[string]interface{}{
			"analysisId": result.ID,
			"error":      err.Error(),
		})
	}
}

// validateRequest rejects requests that cannot identify a deal. Short-term
// rental data does not stand in for the monthly rent.
func validateRequest(req models.AnalysisRequest) error {
	p := req.EffectiveProperty()
	var missing []string
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	if p.PurchasePrice <= 0 {
		missing = append(missing, "purchasePrice")
	}
	if p.MonthlyRent <= 0 {
		missing = append(missing, "monthlyRent")
	}
	if len(missing) > 0 {
		return stderrors.NewValidationError(
			fmt.Sprintf("property is missing required fields: %s", strings.Join(missing, ", ")),
			missing...,
		)
	}
	return nil
}
