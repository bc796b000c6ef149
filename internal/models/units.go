// internal/models/units.go
package models

import "math"

// Fraction is a ratio stored as a decimal fraction (0.08, not 8).
type Fraction float64

// Percentage is a ratio on a 0-100 scale. It must be converted with
// Fraction before it reaches any calculation.
type Percentage float64

func (p Percentage) Fraction() Fraction {
	return Fraction(float64(p) / 100)
}

func (f Fraction) Float64() float64 {
	return float64(f)
}

// Percentage returns f on a 0-100 scale, for display only.
func (f Fraction) Percentage() Percentage {
	return Percentage(float64(f) * 100)
}

// NormalizeFraction is the single ingestion point for ratios whose scale is
// not known up front (occupancy rates, quoted mortgage rates). Values above 1
// are read as percentages. Already-normalized values pass through unchanged.
func NormalizeFraction(v float64) Fraction {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v > 1 {
		return Percentage(v).Fraction()
	}
	return Fraction(v)
}

// Range is an inclusive min/max pair of fractions.
type Range struct {
	Min Fraction `json:"min" mapstructure:"min"`
	Max Fraction `json:"max" mapstructure:"max"`
}

// Midpoint is the reference policy for turning a configured range into a
// single percentage.
func (r Range) Midpoint() Fraction {
	return (r.Min + r.Max) / 2
}

func (r Range) Contains(f Fraction) bool {
	return f >= r.Min && f <= r.Max
}
