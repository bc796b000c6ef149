// internal/workers/deal/analyze-deal/models.go
package analyzedeal

import "deal-analyzer/internal/models"

// Input is the subset of process variables the task reads. Other process
// variables are ignored.
type Input = models.AnalysisRequest

// Output is merged into the process. The flat fields are there for gateway
// conditions; the full result is under "analysis".
type Output struct {
	AnalysisID      string                `json:"analysisId"`
	MeetsCriteria   bool                  `json:"meetsCriteria"`
	MonthlyCashFlow float64               `json:"monthlyCashFlow"`
	CapRate         float64               `json:"capRate"`
	CashOnCash      float64               `json:"cashOnCash"`
	Degraded        bool                  `json:"degraded"`
	Analysis        models.AnalysisResult `json:"analysis"`
}
