package models

// AnalysisRequest is the input shared by the HTTP API, the job worker and the
// CLI.
type AnalysisRequest struct {
	Property PropertyFacts `json:"property"`

	// FundingSource overrides any hint embedded in the property.
	FundingSource string     `json:"fundingSource,omitempty"`
	Mode          IncomeMode `json:"mode,omitempty"`

	Mortgage   *MortgageOverride `json:"mortgage,omitempty"`
	STRMetrics *STRMetrics       `json:"strMetrics,omitempty"`
	Expenses   ExpenseOverrides  `json:"expenses,omitempty"`

	// Score requests the optional external assessment.
	Score bool `json:"score,omitempty"`
}

// EffectiveProperty returns the property with separately supplied short-term
// metrics folded in. Supplied metrics win over values already on the listing.
func (r AnalysisRequest) EffectiveProperty() PropertyFacts {
	p := r.Property
	if r.STRMetrics == nil {
		return p
	}
	if r.STRMetrics.AverageDailyRate != nil {
		p.AverageDailyRate = Float(*r.STRMetrics.AverageDailyRate)
	}
	if r.STRMetrics.OccupancyRate != nil {
		p.OccupancyRate = Float(*r.STRMetrics.OccupancyRate)
	}
	return p
}

// FundingSourceKey picks the request value, then the listing's embedded value.
func (r AnalysisRequest) FundingSourceKey() string {
	if r.FundingSource != "" {
		return r.FundingSource
	}
	return r.Property.FundingSource
}
