// Package financing turns a purchase price and funding source into down
// payment, closing costs, loan amount and monthly principal-and-interest.
package financing

import (
	"fmt"
	"math"

	"deal-analyzer/internal/models"
)

// DefaultTermMonths is a 30-year fixed mortgage.
const DefaultTermMonths = 360

type Input struct {
	PurchasePrice float64
	FundingSource models.FundingSource
	Criteria      models.CriteriaConfig
	AnnualRate    models.Fraction
	TermMonths    int

	// MonthlyPayment, when set, is trusted as-is and never recomputed.
	MonthlyPayment *float64
}

// Calculate is pure and never fails; out-of-range inputs are clamped and
// reported through result flags.
func Calculate(in Input) models.FinancingResult {
	source := in.FundingSource
	var flags []models.Flag
	if !source.Valid() {
		flags = append(flags, models.Flag{
			Code:    models.FlagFundingSourceDefaulted,
			Message: fmt.Sprintf("unknown funding source %q, using %s", source, models.DefaultFundingSource),
			Source:  "financing",
		})
		source = models.DefaultFundingSource
	}

	term := in.TermMonths
	if term <= 0 {
		if in.TermMonths < 0 {
			flags = append(flags, models.Flag{
				Code:    models.FlagInvalidTerm,
				Message: fmt.Sprintf("term of %d months replaced with %d", in.TermMonths, DefaultTermMonths),
				Source:  "financing",
			})
		}
		term = DefaultTermMonths
	}

	fraction := DownPaymentFraction(source, in.Criteria)
	result := models.FinancingResult{
		FundingSource:       source,
		DownPaymentFraction: fraction,
		AnnualRate:          in.AnnualRate,
		TermMonths:          term,
		PaymentSource:       models.PaymentAmortized,
	}

	price := in.PurchasePrice
	if price <= 0 || math.IsNaN(price) {
		flags = append(flags, models.Flag{
			Code:    models.FlagNonPositivePrice,
			Message: "purchase price is not positive; financing amounts are zero",
			Source:  "financing",
		})
		price = 0
	}

	result.DownPayment = price * fraction.Float64()
	result.ClosingCosts = price * in.Criteria.ClosingCosts.Midpoint().Float64()
	result.InitialFixedCosts = price * in.Criteria.InitialFixedCosts.Float64()
	result.TotalCashNeeded = result.DownPayment + result.ClosingCosts + result.InitialFixedCosts

	loan := price - result.DownPayment
	if loan < 0 {
		flags = append(flags, models.Flag{
			Code:    models.FlagNegativeLoanClamped,
			Message: fmt.Sprintf("down payment %.2f exceeds price %.2f; loan clamped to 0", result.DownPayment, price),
			Source:  "financing",
		})
		loan = 0
	}
	result.LoanAmount = loan

	if in.MonthlyPayment != nil {
		result.MonthlyPayment = *in.MonthlyPayment
		result.PaymentSource = models.PaymentCaller
		flags = append(flags, models.Flag{
			Code:    models.FlagCallerPayment,
			Message: "monthly payment supplied by caller",
			Source:  "financing",
		})
	} else {
		if in.AnnualRate == 0 && loan > 0 {
			flags = append(flags, models.Flag{
				Code:    models.FlagZeroRateAmortization,
				Message: "zero interest rate; payment is principal divided by term",
				Source:  "financing",
			})
		}
		result.MonthlyPayment = MonthlyPayment(loan, in.AnnualRate, term)
	}

	result.Flags = flags
	return result
}

// DownPaymentFraction resolves the fraction for source under the criteria's
// down-payment basis. Cash purchases always pay the full price.
func DownPaymentFraction(source models.FundingSource, criteria models.CriteriaConfig) models.Fraction {
	if criteria.DownPaymentBasis == models.DownPaymentFromCriteria && source.Financed() {
		return criteria.DownPayment.Midpoint()
	}
	return source.DownPaymentFraction()
}

// MonthlyPayment is the fixed-rate amortization payment
// P·r·(1+r)^n / ((1+r)^n − 1) with r the monthly rate. A zero rate yields P/n.
func MonthlyPayment(principal float64, annualRate models.Fraction, termMonths int) float64 {
	if principal <= 0 {
		return 0
	}
	if termMonths <= 0 {
		termMonths = DefaultTermMonths
	}
	n := float64(termMonths)
	r := annualRate.Float64() / 12
	if r == 0 {
		return principal / n
	}
	growth := math.Pow(1+r, n)
	return principal * r * growth / (growth - 1)
}
