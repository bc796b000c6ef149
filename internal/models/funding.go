// internal/models/funding.go
package models

import "strings"

// FundingSource selects the down-payment fraction used for financing.
type FundingSource string

const (
	FundingConventional FundingSource = "conventional"
	FundingFHA          FundingSource = "fha"
	FundingVA           FundingSource = "va"
	FundingHardMoney    FundingSource = "hard-money"
	FundingCash         FundingSource = "cash"

	DefaultFundingSource = FundingConventional
)

// FundingSources lists every known key in a stable order.
var FundingSources = []FundingSource{
	FundingConventional,
	FundingFHA,
	FundingVA,
	FundingHardMoney,
	FundingCash,
}

// ParseFundingSource maps free-form input onto a known key. The second
// return value is false when the input was empty or unknown, in which case
// the conventional default is returned.
func ParseFundingSource(raw string) (FundingSource, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)

	switch key {
	case "conventional":
		return FundingConventional, true
	case "fha":
		return FundingFHA, true
	case "va":
		return FundingVA, true
	case "hard-money", "hardmoney":
		return FundingHardMoney, true
	case "cash":
		return FundingCash, true
	default:
		return DefaultFundingSource, false
	}
}

// DownPaymentFraction returns the fixed fraction of the purchase price paid
// up front. Unknown values fall through to the conventional fraction.
func (f FundingSource) DownPaymentFraction() Fraction {
	switch f {
	case FundingFHA:
		return 0.035
	case FundingVA:
		return 0
	case FundingHardMoney:
		return 0.10
	case FundingCash:
		return 1.0
	default:
		return 0.20
	}
}

// Financed reports whether the source carries a loan at all.
func (f FundingSource) Financed() bool {
	return f != FundingCash
}

func (f FundingSource) Valid() bool {
	for _, known := range FundingSources {
		if f == known {
			return true
		}
	}
	return false
}
