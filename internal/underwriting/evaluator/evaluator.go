// Package evaluator grades computed deal metrics against an investor's
// criteria.
package evaluator

import (
	"fmt"
	"strings"

	"deal-analyzer/internal/models"
)

// Check names.
const (
	CheckMaxPrice          = "max_purchase_price"
	CheckCashFlowPositive  = "cash_flow_positive"
	CheckOnePercentRule    = "one_percent_rule"
	CheckPropertyType      = "property_type"
	CheckLocation          = "location"
	CheckShortTermADR      = "str_adr_minimum"
	CheckShortTermOccupied = "str_occupancy_minimum"
	CheckShortTermRevenue  = "str_annual_revenue_minimum"
)

type Input struct {
	Property models.PropertyFacts
	Metrics  models.CashFlowMetrics
	// ShortTerm is the short-term projection, when the property has one.
	ShortTerm *models.CashFlowMetrics
	Criteria  models.CriteriaConfig
}

// Evaluate has no side effects.
func Evaluate(in Input) models.Evaluation {
	c := in.Criteria
	var flags []models.Flag

	capRate := Grade("cap_rate", in.Metrics.CapRate, c.CapRate)
	coc := Grade("cash_on_cash", in.Metrics.CashOnCash, c.CashOnCash)
	flags = append(flags, inversionFlags(capRate, c.CapRate)...)
	flags = append(flags, inversionFlags(coc, c.CashOnCash)...)

	checks := []models.Check{
		maxPriceCheck(in.Property.PurchasePrice, c.MaxPurchasePrice),
		{
			Name:   CheckCashFlowPositive,
			Passed: in.Metrics.CashFlowPositive,
			Detail: fmt.Sprintf("monthly cash flow %.2f", in.Metrics.MonthlyCashFlow),
		},
		{
			Name:   CheckOnePercentRule,
			Passed: in.Metrics.PassesOnePercentRule,
			Detail: fmt.Sprintf("rent/price ratio %.4f", in.Metrics.OnePercentRatio),
		},
	}
	if len(c.PropertyTypes) > 0 {
		checks = append(checks, propertyTypeCheck(in.Property, c.PropertyTypes))
	}
	if c.Location != "" {
		checks = append(checks, models.Check{
			Name:   CheckLocation,
			Passed: strings.EqualFold(strings.TrimSpace(in.Property.State), strings.TrimSpace(c.Location)),
			Detail: fmt.Sprintf("state %q, required %q", in.Property.State, c.Location),
		})
	}

	meets := capRate.MeetsMinimum && coc.MeetsMinimum
	if c.RequireBenchmark {
		meets = meets && capRate.MeetsBenchmark && coc.MeetsBenchmark
	}
	for _, check := range checks {
		meets = meets && check.Passed
	}

	eval := models.Evaluation{
		CapRate:           capRate,
		CashOnCash:        coc,
		BenchmarkRequired: c.RequireBenchmark,
	}

	if in.ShortTerm != nil {
		strChecks, yield, strFlags := shortTermChecks(*in.ShortTerm, c)
		flags = append(flags, strFlags...)
		strMeets := true
		for _, check := range strChecks {
			strMeets = strMeets && check.Passed
		}
		if yield != nil {
			strMeets = strMeets && yield.MeetsMinimum
			if c.RequireBenchmark {
				strMeets = strMeets && yield.MeetsBenchmark
			}
		}
		checks = append(checks, strChecks...)
		eval.GrossYield = yield
		eval.ShortTermMeetsCriteria = &strMeets
		meets = meets && strMeets
	}

	eval.Checks = checks
	eval.MeetsCriteria = meets
	eval.Flags = flags
	return eval
}

// Grade assigns a tier. Reaching the benchmark always counts as reaching the
// minimum, so an inverted configuration cannot produce a benchmark pass that
// fails the minimum.
func Grade(metric string, value models.Fraction, t models.Threshold) models.TierVerdict {
	v := models.TierVerdict{
		Metric:    metric,
		Value:     value,
		Benchmark: t.Benchmark,
		Minimum:   t.Minimum,
	}
	v.MeetsBenchmark = value >= t.Benchmark
	v.MeetsMinimum = v.MeetsBenchmark || value >= t.Minimum

	switch {
	case v.MeetsBenchmark:
		v.Tier = models.TierBenchmark
	case v.MeetsMinimum:
		v.Tier = models.TierMinimum
	default:
		v.Tier = models.TierFail
	}
	return v
}

func inversionFlags(v models.TierVerdict, t models.Threshold) []models.Flag {
	if !t.Inverted() {
		return nil
	}
	return []models.Flag{{
		Code:    models.FlagCriteriaTierInverted,
		Message: fmt.Sprintf("%s minimum %.4f is above benchmark %.4f", v.Metric, t.Minimum.Float64(), t.Benchmark.Float64()),
		Source:  "evaluator",
	}}
}

func maxPriceCheck(price, max float64) models.Check {
	if max <= 0 {
		return models.Check{Name: CheckMaxPrice, Passed: true, Detail: "no maximum configured"}
	}
	return models.Check{
		Name:   CheckMaxPrice,
		Passed: price <= max,
		Detail: fmt.Sprintf("price %.2f, maximum %.2f", price, max),
	}
}

func propertyTypeCheck(p models.PropertyFacts, allowed []string) models.Check {
	got := p.NormalizedPropertyType()
	for _, a := range allowed {
		if models.NormalizePropertyType(a) == got {
			return models.Check{Name: CheckPropertyType, Passed: true, Detail: got}
		}
	}
	return models.Check{
		Name:   CheckPropertyType,
		Passed: false,
		Detail: fmt.Sprintf("%q not in %v", got, allowed),
	}
}

func shortTermChecks(m models.CashFlowMetrics, c models.CriteriaConfig) ([]models.Check, *models.TierVerdict, []models.Flag) {
	t := c.ShortTermThresholds
	var checks []models.Check
	var flags []models.Flag

	if t.ADRMinimum != nil {
		adr := deref(m.AverageDailyRate)
		checks = append(checks, models.Check{
			Name:   CheckShortTermADR,
			Passed: adr >= *t.ADRMinimum,
			Detail: fmt.Sprintf("ADR %.2f, minimum %.2f", adr, *t.ADRMinimum),
		})
	}
	if t.OccupancyMinimum != nil {
		var occ models.Fraction
		if m.OccupancyRate != nil {
			occ = *m.OccupancyRate
		}
		checks = append(checks, models.Check{
			Name:   CheckShortTermOccupied,
			Passed: occ >= *t.OccupancyMinimum,
			Detail: fmt.Sprintf("occupancy %.4f, minimum %.4f", occ.Float64(), t.OccupancyMinimum.Float64()),
		})
	}
	if t.AnnualRevenueMinimum != nil {
		rev := deref(m.ProjectedAnnualRevenue)
		checks = append(checks, models.Check{
			Name:   CheckShortTermRevenue,
			Passed: rev >= *t.AnnualRevenueMinimum,
			Detail: fmt.Sprintf("annual revenue %.2f, minimum %.2f", rev, *t.AnnualRevenueMinimum),
		})
	}

	var yield *models.TierVerdict
	if t.GrossYieldMinimum != nil {
		threshold := models.Threshold{Minimum: *t.GrossYieldMinimum, Benchmark: *t.GrossYieldMinimum}
		if t.GrossYieldBenchmark != nil {
			threshold.Benchmark = *t.GrossYieldBenchmark
		}
		var value models.Fraction
		if m.GrossYield != nil {
			value = *m.GrossYield
		}
		v := Grade("gross_yield", value, threshold)
		yield = &v
		flags = append(flags, inversionFlags(v, threshold)...)
	}

	return checks, yield, flags
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
