package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"deal-analyzer/internal/models"

	"github.com/shopspring/decimal"
)

// FileCriteriaSource reads the buy box from a markdown criteria sheet, or from
// JSON when the file has a .json extension. Values missing from the file keep
// their DefaultCriteria value.
type FileCriteriaSource struct {
	Path string
}

func NewFileCriteriaSource(path string) *FileCriteriaSource {
	return &FileCriteriaSource{Path: path}
}

func (s *FileCriteriaSource) Name() string { return "file" }

func (s *FileCriteriaSource) LoadCriteria(ctx context.Context) (models.CriteriaConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.CriteriaConfig{}, err
	}
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return models.CriteriaConfig{}, fmt.Errorf("read criteria %s: %w", s.Path, err)
	}

	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		c := models.DefaultCriteria()
		if err := json.Unmarshal(content, &c); err != nil {
			return models.CriteriaConfig{}, fmt.Errorf("%w: %v", ErrMalformedCriteria, err)
		}
		return c, nil
	}

	c, err := ParseCriteriaMarkdown(string(content))
	if err != nil {
		return models.CriteriaConfig{}, err
	}
	c.Name = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	return c, nil
}

var (
	reMDPropertyTypes = regexp.MustCompile(`\*\*Property Types:\*\*\s*(.*)`)
	reMDLocation      = regexp.MustCompile(`\*\*Location:\*\*\s*(.*)`)
	reMDMaxPrice      = regexp.MustCompile(`\*\*Max Purchase Price:\*\*\s*\$(\d{1,3}(?:,\d{3})*(?:\.\d+)?)`)
	reMDDownPayment   = regexp.MustCompile(`\*\*Downpayment:\*\*\s*Anticipate\s*(\d{1,3}(?:\.\d+)?)-(\d{1,3}(?:\.\d+)?)%`)
	reMDClosingCosts  = regexp.MustCompile(`\*\*Closing Costs:\*\*\s*Estimate\s*(\d{1,2}(?:\.\d+)?)% to (\d{1,2}(?:\.\d+)?)%`)
	reMDInitialFixed  = regexp.MustCompile(`\*\*Initial Fixed Costs:\*\*\s*Estimate an additional\s*(\d{1,2}(?:\.\d+)?)%`)
	reMDMaintenance   = regexp.MustCompile(`\*\*Maintenance Reserve:\*\*\s*Allow\s*(\d{1,2}(?:\.\d+)?)%`)
	reMDCashOnCash    = regexp.MustCompile(`\*\*Cash-on-Cash \(COC\) Return:\*\*\s*Benchmark of\s*(\d{1,2}(?:\.\d+)?)% to (\d{1,2}(?:\.\d+)?)%, bare minimum of (\d{1,2}(?:\.\d+)?)% to (\d{1,2}(?:\.\d+)?)%`)
	reMDCapRate       = regexp.MustCompile(`\*\*Capitalization \(Cap\) Rate:\*\*\s*Benchmark of\s*(\d{1,2}(?:\.\d+)?)% to (\d{1,2}(?:\.\d+)?)%, bare minimum of (\d{1,2}(?:\.\d+)?)%`)
	reMDADR           = regexp.MustCompile(`\*\*Minimum ADR \(Average Daily Rate\):\*\*\s*\$(\d{1,3}(?:,\d{3})*(?:\.\d+)?)`)
	reMDOccupancy     = regexp.MustCompile(`\*\*Minimum Occupancy Rate:\*\*\s*(\d{1,3}(?:\.\d+)?)%(?:\s*\(([0-9.]+)\))?`)
	reMDGrossYield    = regexp.MustCompile(`\*\*Minimum Gross Yield:\*\*\s*(\d{1,3}(?:\.\d+)?)%(?:\s*\(([0-9.]+)\))?`)
	reMDAnnualRevenue = regexp.MustCompile(`\*\*Minimum Annual Revenue:\*\*\s*\$(\d{1,3}(?:,\d{3})*(?:\.\d+)?)`)
	reMDAnd           = regexp.MustCompile(`(?i)\s+and\s+|,`)
)

// ParseCriteriaMarkdown extracts a buy box from the investor criteria sheet.
// A sheet in which no known line matches is rejected.
func ParseCriteriaMarkdown(content string) (models.CriteriaConfig, error) {
	c := models.DefaultCriteria()
	c.Name = "markdown"
	matched := 0

	if m := reMDPropertyTypes.FindStringSubmatch(content); m != nil {
		var types []string
		for _, part := range reMDAnd.Split(m[1], -1) {
			if t := models.NormalizePropertyType(part); t != "" {
				types = append(types, t)
			}
		}
		c.PropertyTypes = types
		matched++
	}
	if m := reMDLocation.FindStringSubmatch(content); m != nil {
		c.Location = strings.TrimSpace(m[1])
		matched++
	}
	if m := reMDMaxPrice.FindStringSubmatch(content); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return c, err
		}
		c.MaxPurchasePrice = v
		matched++
	}
	if m := reMDDownPayment.FindStringSubmatch(content); m != nil {
		c.DownPayment = models.Range{Min: percent(m[1]), Max: percent(m[2])}
		matched++
	}
	if m := reMDClosingCosts.FindStringSubmatch(content); m != nil {
		c.ClosingCosts = models.Range{Min: percent(m[1]), Max: percent(m[2])}
		matched++
	}
	if m := reMDInitialFixed.FindStringSubmatch(content); m != nil {
		c.InitialFixedCosts = percent(m[1])
		matched++
	}
	if m := reMDMaintenance.FindStringSubmatch(content); m != nil {
		c.Expenses.MaintenanceReserve = percent(m[1])
		c.Expenses.MaintenanceBasis = models.ReserveOfRent
		matched++
	}
	if m := reMDCashOnCash.FindStringSubmatch(content); m != nil {
		c.CashOnCash = models.Threshold{Benchmark: percent(m[1]), Minimum: percent(m[3])}
		matched++
	}
	if m := reMDCapRate.FindStringSubmatch(content); m != nil {
		c.CapRate = models.Threshold{Benchmark: percent(m[1]), Minimum: percent(m[3])}
		matched++
	}
	if m := reMDADR.FindStringSubmatch(content); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return c, err
		}
		c.ShortTermThresholds.ADRMinimum = models.Float(v)
		matched++
	}
	if m := reMDOccupancy.FindStringSubmatch(content); m != nil {
		c.ShortTermThresholds.OccupancyMinimum = models.FractionPtr(fractionOf(m))
		matched++
	}
	if m := reMDGrossYield.FindStringSubmatch(content); m != nil {
		c.ShortTermThresholds.GrossYieldMinimum = models.FractionPtr(fractionOf(m))
		matched++
	}
	if m := reMDAnnualRevenue.FindStringSubmatch(content); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return c, err
		}
		c.ShortTermThresholds.AnnualRevenueMinimum = models.Float(v)
		matched++
	}

	if matched == 0 {
		return models.CriteriaConfig{}, fmt.Errorf("%w: no criteria lines recognised", ErrMalformedCriteria)
	}
	return c, nil
}

func parseMoney(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", ErrMalformedCriteria, raw, err)
	}
	return d.InexactFloat64(), nil
}

// percent converts a whole-number percentage capture into a fraction.
func percent(raw string) models.Fraction {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return models.Percentage(d.InexactFloat64()).Fraction()
}

// fractionOf prefers the explicit "(0.xx)" value and falls back to the
// percentage.
func fractionOf(m []string) models.Fraction {
	if len(m) > 2 && m[2] != "" {
		if d, err := decimal.NewFromString(m[2]); err == nil {
			return models.NormalizeFraction(d.InexactFloat64())
		}
	}
	return percent(m[1])
}
