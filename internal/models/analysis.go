// internal/models/analysis.go
package models

import "time"

// FlagCode identifies a data-quality, invariant, or degradation note attached
// to a result. Flags never change the outcome of an analysis on their own.
type FlagCode string

const (
	FlagNegativeLoanClamped    FlagCode = "NEGATIVE_LOAN_CLAMPED"
	FlagZeroRateAmortization   FlagCode = "ZERO_RATE_AMORTIZATION"
	FlagInvalidTerm            FlagCode = "INVALID_TERM"
	FlagNonPositivePrice       FlagCode = "NON_POSITIVE_PRICE"
	FlagNoCashInvested         FlagCode = "NO_CASH_INVESTED"
	FlagShortTermIncomplete    FlagCode = "STR_INCOMPLETE"
	FlagFundingSourceDefaulted FlagCode = "FUNDING_SOURCE_DEFAULTED"
	FlagCriteriaTierInverted   FlagCode = "CRITERIA_TIER_INVERTED"
	FlagDependencyDegraded     FlagCode = "DEPENDENCY_DEGRADED"
	FlagCallerPayment          FlagCode = "CALLER_SUPPLIED_PAYMENT"
)

type Flag struct {
	Code    FlagCode `json:"code"`
	Message string   `json:"message"`
	Source  string   `json:"source,omitempty"`
}

// HasFlag reports whether flags contains code.
func HasFlag(flags []Flag, code FlagCode) bool {
	for _, f := range flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

// PaymentSource records where the monthly payment came from.
type PaymentSource string

const (
	PaymentAmortized PaymentSource = "amortized"
	PaymentCaller    PaymentSource = "caller"
)

type FinancingResult struct {
	FundingSource       FundingSource `json:"fundingSource"`
	DownPaymentFraction Fraction      `json:"downPaymentFraction"`
	DownPayment         float64       `json:"downPayment"`
	ClosingCosts        float64       `json:"closingCosts"`
	InitialFixedCosts   float64       `json:"initialFixedCosts"`
	TotalCashNeeded     float64       `json:"totalCashNeeded"`
	LoanAmount          float64       `json:"loanAmount"`
	AnnualRate          Fraction      `json:"annualRate"`
	TermMonths          int           `json:"termMonths"`
	MonthlyPayment      float64       `json:"monthlyPayment"`
	PaymentSource       PaymentSource `json:"paymentSource"`
	Flags               []Flag        `json:"flags,omitempty"`
}

// IncomeMode selects how gross monthly income is derived.
type IncomeMode string

const (
	LongTermRental  IncomeMode = "long-term"
	ShortTermRental IncomeMode = "short-term"
)

// ExpenseBreakdown is the itemized monthly expense set.
type ExpenseBreakdown struct {
	Mortgage    float64 `json:"mortgage"`
	PropertyTax float64 `json:"propertyTax"`
	Insurance   float64 `json:"insurance"`
	Vacancy     float64 `json:"vacancy"`
	Maintenance float64 `json:"maintenance"`
	Management  float64 `json:"management"`
	Utilities   float64 `json:"utilities"`
	Cleaning    float64 `json:"cleaning"`
	Supplies    float64 `json:"supplies"`
	Other       float64 `json:"other"`
}

// Operating sums every line except financing.
func (e ExpenseBreakdown) Operating() float64 {
	return e.PropertyTax + e.Insurance + e.Vacancy + e.Maintenance +
		e.Management + e.Utilities + e.Cleaning + e.Supplies + e.Other
}

func (e ExpenseBreakdown) Total() float64 {
	return e.Mortgage + e.Operating()
}

// CashFlowMetrics is the Cash-Flow Engine output for one income mode.
type CashFlowMetrics struct {
	Mode                 IncomeMode       `json:"mode"`
	GrossMonthlyIncome   float64          `json:"grossMonthlyIncome"`
	Expenses             ExpenseBreakdown `json:"expenses"`
	TotalMonthlyExpenses float64          `json:"totalMonthlyExpenses"`
	MonthlyCashFlow      float64          `json:"monthlyCashFlow"`
	AnnualCashFlow       float64          `json:"annualCashFlow"`
	CashFlowPositive     bool             `json:"cashFlowPositive"`
	NetOperatingIncome   float64          `json:"netOperatingIncome"`
	CapRate              Fraction         `json:"capRate"`
	CashOnCash           Fraction         `json:"cashOnCash"`
	OnePercentRatio      float64          `json:"onePercentRatio"`
	PassesOnePercentRule bool             `json:"passesOnePercentRule"`

	// Short-term only.
	AverageDailyRate       *float64  `json:"adr,omitempty"`
	OccupancyRate          *Fraction `json:"occupancyRate,omitempty"`
	ProjectedAnnualRevenue *float64  `json:"projectedAnnualRevenue,omitempty"`
	GrossYield             *Fraction `json:"grossYield,omitempty"`

	Flags []Flag `json:"flags,omitempty"`
}

// Tier is the outcome of a tiered metric.
type Tier string

const (
	TierBenchmark Tier = "benchmark"
	TierMinimum   Tier = "minimum"
	TierFail      Tier = "fail"
)

type TierVerdict struct {
	Metric         string   `json:"metric"`
	Value          Fraction `json:"value"`
	Benchmark      Fraction `json:"benchmark"`
	Minimum        Fraction `json:"minimum"`
	MeetsBenchmark bool     `json:"meetsBenchmark"`
	MeetsMinimum   bool     `json:"meetsMinimum"`
	Tier           Tier     `json:"tier"`
}

// Check is a non-tiered boolean criterion.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type Evaluation struct {
	CapRate                TierVerdict  `json:"capRate"`
	CashOnCash             TierVerdict  `json:"cashOnCash"`
	GrossYield             *TierVerdict `json:"grossYield,omitempty"`
	Checks                 []Check      `json:"checks"`
	ShortTermMeetsCriteria *bool        `json:"shortTermMeetsCriteria,omitempty"`
	BenchmarkRequired      bool         `json:"benchmarkRequired"`
	MeetsCriteria          bool         `json:"meetsCriteria"`
	Flags                  []Flag       `json:"flags,omitempty"`
}

// Check returns the named check and whether it was evaluated.
func (e Evaluation) Check(name string) (Check, bool) {
	for _, c := range e.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Assessment is an externally produced narrative and score.
type Assessment struct {
	Score    int       `json:"score"`
	Verdict  string    `json:"verdict"`
	Summary  string    `json:"summary"`
	Risks    []string  `json:"risks,omitempty"`
	Provider string    `json:"provider"`
	ScoredAt time.Time `json:"scoredAt"`
}

// AnalysisResult is the terminal artifact of one analysis request.
type AnalysisResult struct {
	ID            string           `json:"id"`
	Property      PropertyFacts    `json:"property"`
	CriteriaName  string           `json:"criteriaName"`
	Financing     FinancingResult  `json:"financing"`
	CashFlow      CashFlowMetrics  `json:"cashFlow"`
	ShortTerm     *CashFlowMetrics `json:"shortTerm,omitempty"`
	Evaluation    Evaluation       `json:"evaluation"`
	MeetsCriteria bool             `json:"meetsCriteria"`
	RateSource    string           `json:"rateSource"`
	Flags         []Flag           `json:"flags,omitempty"`
	Assessment    *Assessment      `json:"assessment,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// WithAssessment returns a copy of r carrying a. The financial fields are
// shared with r and left untouched.
func (r AnalysisResult) WithAssessment(a Assessment) AnalysisResult {
	out := r
	out.Assessment = &a
	return out
}
