package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"deal-analyzer/internal/common/validation"
	"deal-analyzer/internal/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one deal and print the result",
	Long: `Analyze one deal from a property data file.

The property file holds an analysis request ({"property": {...}, ...}).
The optional data file adds short-term rental metrics and monthly expense
overrides:

  {"str_metrics": {"adr": 185, "occupancy_rate": 68},
   "monthly_expenses": {"property_taxes": 210, "insurance": 95}}

Examples:
  deal-analyzer analyze --property-data deal.json
  deal-analyzer analyze --property-data deal.json --data-file extra.json --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		propertyFile, _ := cmd.Flags().GetString("property-data")
		dataFile, _ := cmd.Flags().GetString("data-file")
		asJSON, _ := cmd.Flags().GetBool("json")
		score, _ := cmd.Flags().GetBool("score")

		req, err := loadRequest(propertyFile)
		if err != nil {
			return err
		}
		if dataFile != "" {
			extra, err := loadAdditionalData(dataFile)
			if err != nil {
				return err
			}
			req = extra.apply(req)
		}
		req.Score = req.Score || score

		return runAnalyze(cmd.Context(), req, asJSON, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().String("property-data", "", "path to the property data JSON file")
	analyzeCmd.Flags().String("data-file", "", "path to additional data JSON (STR metrics, monthly expenses)")
	analyzeCmd.Flags().Bool("json", false, "print the full result as JSON")
	analyzeCmd.Flags().Bool("score", false, "request the external assessment (scoring must be enabled)")
	_ = analyzeCmd.MarkFlagRequired("property-data")
}

func runAnalyze(ctx context.Context, req models.AnalysisRequest, asJSON bool, out io.Writer) error {
	c, err := buildComponents(ctx, cfg, buildOptions{connectRedis: false, retries: 1})
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.orch.Analyze(ctx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if asJSON {
		return writeIndentedJSON(out, result)
	}
	_, err = io.WriteString(out, formatSummary(result))
	return err
}

func loadRequest(path string) (models.AnalysisRequest, error) {
	var req models.AnalysisRequest

	raw, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("property data file: %w", err)
	}

	result, err := validation.ValidatePayload(validation.AnalysisRequestSchema, raw)
	if err != nil {
		return req, fmt.Errorf("property data file %s: %w", path, err)
	}
	if !result.Valid {
		return req, fmt.Errorf("property data file %s is invalid: %s", path, strings.Join(result.GetErrorMessages(), "; "))
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("property data file %s: %w", path, err)
	}
	return req, nil
}

// additionalData is the data file layout. Zero values are ignored.
type additionalData struct {
	STRMetrics *struct {
		ADR           float64 `json:"adr"`
		OccupancyRate float64 `json:"occupancy_rate"`
	} `json:"str_metrics"`
	MonthlyExpenses *struct {
		PropertyTaxes float64 `json:"property_taxes"`
		Insurance     float64 `json:"insurance"`
		Utilities     float64 `json:"utilities"`
		Management    float64 `json:"management"`
		Maintenance   float64 `json:"maintenance"`
		Cleaning      float64 `json:"cleaning"`
		Supplies      float64 `json:"supplies"`
		Other         float64 `json:"other"`
	} `json:"monthly_expenses"`
}

func loadAdditionalData(path string) (additionalData, error) {
	var extra additionalData
	raw, err := os.ReadFile(path)
	if err != nil {
		return extra, fmt.Errorf("data file: %w", err)
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return extra, fmt.Errorf("data file %s: %w", path, err)
	}
	return extra, nil
}

func (d additionalData) apply(req models.AnalysisRequest) models.AnalysisRequest {
	if m := d.STRMetrics; m != nil {
		metrics := models.STRMetrics{}
		if req.STRMetrics != nil {
			metrics = *req.STRMetrics
		}
		if m.ADR > 0 {
			metrics.AverageDailyRate = models.Float(m.ADR)
		}
		if m.OccupancyRate > 0 {
			metrics.OccupancyRate = models.Float(m.OccupancyRate)
		}
		req.STRMetrics = &metrics
	}

	if e := d.MonthlyExpenses; e != nil {
		set := func(v float64) *float64 {
			if v > 0 {
				return models.Float(v)
			}
			return nil
		}
		req.Expenses = req.Expenses.Merge(models.ExpenseOverrides{
			PropertyTax: set(e.PropertyTaxes),
			Insurance:   set(e.Insurance),
			Utilities:   set(e.Utilities),
			Management:  set(e.Management),
			Maintenance: set(e.Maintenance),
			Cleaning:    set(e.Cleaning),
			Supplies:    set(e.Supplies),
			Other:       set(e.Other),
		})
	}
	return req
}

func formatSummary(r models.AnalysisResult) string {
	var b strings.Builder
	verdict := "NO"
	if r.MeetsCriteria {
		verdict = "YES"
	}

	fmt.Fprintf(&b, "Property: %s\n", r.Property.Address)
	fmt.Fprintf(&b, "Meets Criteria: %s\n", verdict)
	fmt.Fprintf(&b, "Cash Flow: $%.2f\n", r.CashFlow.MonthlyCashFlow)
	fmt.Fprintf(&b, "COC Return: %.2f%%\n", float64(r.CashFlow.CashOnCash.Percentage()))
	fmt.Fprintf(&b, "Cap Rate: %.2f%%\n", float64(r.CashFlow.CapRate.Percentage()))
	if r.ShortTerm != nil && r.ShortTerm.ProjectedAnnualRevenue != nil {
		fmt.Fprintf(&b, "STR Annual Revenue: $%.2f\n", *r.ShortTerm.ProjectedAnnualRevenue)
	}
	for _, f := range r.Flags {
		fmt.Fprintf(&b, "Note: %s %s\n", f.Code, f.Message)
	}
	return b.String()
}
