// internal/models/property.go
package models

import "strings"

// PropertyFacts is the immutable description of a listing as produced by an
// upstream parser.
type PropertyFacts struct {
	Address       string  `json:"address"`
	City          string  `json:"city,omitempty"`
	State         string  `json:"state,omitempty"`
	ZipCode       string  `json:"zipCode,omitempty"`
	PropertyType  string  `json:"propertyType,omitempty"`
	PurchasePrice float64 `json:"purchasePrice"`
	MonthlyRent   float64 `json:"monthlyRent"`
	Bedrooms      int     `json:"bedrooms,omitempty"`
	Bathrooms     float64 `json:"bathrooms,omitempty"`
	SquareFootage int     `json:"squareFootage,omitempty"`
	YearBuilt     int     `json:"yearBuilt,omitempty"`
	Description   string  `json:"description,omitempty"`
	ListingURL    string  `json:"listingUrl,omitempty"`

	// FundingSource is the financing hint embedded by the listing parser, if any.
	FundingSource string `json:"fundingSource,omitempty"`

	// Short-term rental inputs. OccupancyRate may arrive as 0-1 or 0-100.
	AverageDailyRate *float64 `json:"adr,omitempty"`
	OccupancyRate    *float64 `json:"occupancyRate,omitempty"`
}

// HasShortTermData reports whether either short-term rental input is present.
func (p PropertyFacts) HasShortTermData() bool {
	return p.AverageDailyRate != nil || p.OccupancyRate != nil
}

// NormalizedPropertyType lower-cases and hyphenates the type so that
// "Single Family" and "single-family" compare equal.
func (p PropertyFacts) NormalizedPropertyType() string {
	return NormalizePropertyType(p.PropertyType)
}

func NormalizePropertyType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " properties")
	s = strings.TrimSuffix(s, " property")
	s = strings.Join(strings.Fields(s), "-")
	return strings.Trim(s, "-")
}

// STRMetrics carries short-term rental data supplied separately from the
// listing.
type STRMetrics struct {
	AverageDailyRate *float64 `json:"adr,omitempty"`
	OccupancyRate    *float64 `json:"occupancyRate,omitempty"`
}

// ExpenseOverrides are caller-supplied monthly amounts. A non-nil field always
// wins over the derived default.
type ExpenseOverrides struct {
	PropertyTax *float64 `json:"propertyTaxes,omitempty"`
	Insurance   *float64 `json:"insurance,omitempty"`
	Utilities   *float64 `json:"utilities,omitempty"`
	Management  *float64 `json:"management,omitempty"`
	Maintenance *float64 `json:"maintenance,omitempty"`
	Cleaning    *float64 `json:"cleaning,omitempty"`
	Supplies    *float64 `json:"supplies,omitempty"`
	Other       *float64 `json:"other,omitempty"`
}

// Merge returns o with every field that is set in other replaced.
func (o ExpenseOverrides) Merge(other ExpenseOverrides) ExpenseOverrides {
	pick := func(cur, next *float64) *float64 {
		if next != nil {
			v := *next
			return &v
		}
		return cur
	}
	return ExpenseOverrides{
		PropertyTax: pick(o.PropertyTax, other.PropertyTax),
		Insurance:   pick(o.Insurance, other.Insurance),
		Utilities:   pick(o.Utilities, other.Utilities),
		Management:  pick(o.Management, other.Management),
		Maintenance: pick(o.Maintenance, other.Maintenance),
		Cleaning:    pick(o.Cleaning, other.Cleaning),
		Supplies:    pick(o.Supplies, other.Supplies),
		Other:       pick(o.Other, other.Other),
	}
}

// MortgageOverride carries values from a caller that already ran its own
// mortgage calculation.
type MortgageOverride struct {
	MonthlyPayment *float64 `json:"monthlyPayment,omitempty"`
	AnnualRate     *float64 `json:"annualRate,omitempty"`
	TermMonths     int      `json:"termMonths,omitempty"`
}

// Supplied reports whether the override makes a live rate lookup unnecessary.
func (m *MortgageOverride) Supplied() bool {
	return m != nil && (m.MonthlyPayment != nil || m.AnnualRate != nil)
}

// Float returns a pointer to v. Handy for overrides and optional thresholds.
func Float(v float64) *float64 {
	return &v
}
