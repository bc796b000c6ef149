// Package cashflow computes monthly income, itemized expenses, cash flow and
// yield ratios for a financed property.
package cashflow

import (
	"deal-analyzer/internal/models"
)

const (
	// DaysPerMonth converts a nightly rate into monthly short-term income.
	DaysPerMonth = 30
	// DaysPerYear converts a nightly rate into projected annual revenue.
	DaysPerYear = 365
)

type Input struct {
	Property  models.PropertyFacts
	Financing models.FinancingResult
	Criteria  models.CriteriaConfig
	Overrides models.ExpenseOverrides
	Mode      models.IncomeMode
}

// ResolveMode picks the income mode. Short-term mode is only selected when
// the property carries an ADR or an occupancy rate.
func ResolveMode(requested models.IncomeMode, property models.PropertyFacts) models.IncomeMode {
	switch requested {
	case models.LongTermRental:
		return models.LongTermRental
	case models.ShortTermRental:
		if property.HasShortTermData() {
			return models.ShortTermRental
		}
		return models.LongTermRental
	default:
		if property.HasShortTermData() {
			return models.ShortTermRental
		}
		return models.LongTermRental
	}
}

// Compute is pure and deterministic.
func Compute(in Input) models.CashFlowMetrics {
	mode := ResolveMode(in.Mode, in.Property)
	price := in.Property.PurchasePrice
	rent := in.Property.MonthlyRent

	var m models.CashFlowMetrics
	m.Mode = mode

	switch mode {
	case models.ShortTermRental:
		computeShortTerm(&m, in)
	default:
		m.GrossMonthlyIncome = rent
		m.Expenses = longTermExpenses(in)
	}

	m.Expenses.Mortgage = in.Financing.MonthlyPayment
	m.TotalMonthlyExpenses = m.Expenses.Total()
	m.MonthlyCashFlow = m.GrossMonthlyIncome - m.TotalMonthlyExpenses
	m.AnnualCashFlow = m.MonthlyCashFlow * 12
	m.CashFlowPositive = m.MonthlyCashFlow > 0
	m.NetOperatingIncome = (m.GrossMonthlyIncome - m.Expenses.Operating()) * 12

	if price > 0 {
		m.CapRate = models.Fraction(m.NetOperatingIncome / price)
	} else {
		m.Flags = append(m.Flags, models.Flag{
			Code:    models.FlagNonPositivePrice,
			Message: "purchase price is not positive; cap rate and 1% ratio are zero",
			Source:  "cashflow",
		})
	}

	invested := in.Financing.DownPayment + in.Financing.ClosingCosts + in.Financing.InitialFixedCosts
	if invested > 0 {
		m.CashOnCash = models.Fraction(m.AnnualCashFlow / invested)
	} else {
		m.Flags = append(m.Flags, models.Flag{
			Code:    models.FlagNoCashInvested,
			Message: "no cash invested; cash-on-cash return is zero",
			Source:  "cashflow",
		})
	}

	m.OnePercentRatio = OnePercentRatio(rent, price)
	m.PassesOnePercentRule = PassesOnePercentRule(m.OnePercentRatio, in.Criteria.OnePercentRule)

	return m
}

// OnePercentRatio is monthly rent over purchase price, zero when the price is
// not positive.
func OnePercentRatio(monthlyRent, purchasePrice float64) float64 {
	if purchasePrice <= 0 {
		return 0
	}
	return monthlyRent / purchasePrice
}

// PassesOnePercentRule compares ratio against threshold, defaulting to 1%.
func PassesOnePercentRule(ratio float64, threshold models.Fraction) bool {
	if threshold <= 0 {
		threshold = 0.01
	}
	return ratio > 0 && ratio >= threshold.Float64()
}

func longTermExpenses(in Input) models.ExpenseBreakdown {
	price := in.Property.PurchasePrice
	rent := in.Property.MonthlyRent
	a := in.Criteria.Expenses
	o := in.Overrides

	return models.ExpenseBreakdown{
		PropertyTax: override(o.PropertyTax, monthlyPropertyTax(price, a)),
		Insurance:   override(o.Insurance, a.InsuranceMonthly),
		Vacancy:     rent * a.VacancyRate.Float64(),
		Maintenance: override(o.Maintenance, maintenanceReserve(price, rent, a)),
		Management:  override(o.Management, rent*a.ManagementRate.Float64()),
		Utilities:   override(o.Utilities, 0),
		Cleaning:    override(o.Cleaning, 0),
		Supplies:    override(o.Supplies, 0),
		Other:       override(o.Other, 0),
	}
}

func computeShortTerm(m *models.CashFlowMetrics, in Input) {
	p := in.Property
	var adr float64
	var occupancy models.Fraction
	if p.AverageDailyRate != nil {
		adr = *p.AverageDailyRate
	}
	if p.OccupancyRate != nil {
		occupancy = models.NormalizeFraction(*p.OccupancyRate)
	}
	if p.AverageDailyRate == nil || p.OccupancyRate == nil {
		m.Flags = append(m.Flags, models.Flag{
			Code:    models.FlagShortTermIncomplete,
			Message: "short-term projection is missing ADR or occupancy; the missing value is treated as zero",
			Source:  "cashflow",
		})
	}

	income := adr * DaysPerMonth * occupancy.Float64()
	annual := adr * DaysPerYear * occupancy.Float64()
	m.GrossMonthlyIncome = income
	m.AverageDailyRate = &adr
	m.OccupancyRate = &occupancy
	m.ProjectedAnnualRevenue = &annual
	if p.PurchasePrice > 0 {
		yield := models.Fraction(annual / p.PurchasePrice)
		m.GrossYield = &yield
	}

	a := in.Criteria.ShortTerm
	o := in.Overrides
	m.Expenses = models.ExpenseBreakdown{
		PropertyTax: override(o.PropertyTax, monthlyPropertyTax(p.PurchasePrice, in.Criteria.Expenses)),
		Insurance:   override(o.Insurance, in.Criteria.Expenses.InsuranceMonthly),
		Utilities:   override(o.Utilities, a.UtilitiesMonthly),
		Management:  override(o.Management, income*a.ManagementRate.Float64()),
		Maintenance: override(o.Maintenance, income*a.MaintenanceRate.Float64()),
		Cleaning:    override(o.Cleaning, a.CleaningPerOccupiedDay*occupancy.Float64()*DaysPerMonth),
		Supplies:    override(o.Supplies, a.SuppliesMonthly),
		Other:       override(o.Other, 0),
	}
}

func monthlyPropertyTax(price float64, a models.ExpenseAssumptions) float64 {
	if price <= 0 {
		return 0
	}
	return price * a.PropertyTaxRate.Float64() / 12
}

// maintenanceReserve applies the reserve to monthly rent, or to the price as
// an annual percentage spread over twelve months.
func maintenanceReserve(price, rent float64, a models.ExpenseAssumptions) float64 {
	if a.MaintenanceBasis == models.ReserveOfPrice {
		if price <= 0 {
			return 0
		}
		return price * a.MaintenanceReserve.Float64() / 12
	}
	return rent * a.MaintenanceReserve.Float64()
}

func override(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}
