// internal/models/criteria.go
package models

// Threshold is a benchmark/minimum pair for a tiered metric. Minimum is
// expected to be at or below Benchmark.
type Threshold struct {
	Benchmark Fraction `json:"benchmark" mapstructure:"benchmark"`
	Minimum   Fraction `json:"minimum" mapstructure:"minimum"`
}

// Inverted reports a configuration where the minimum exceeds the benchmark.
func (t Threshold) Inverted() bool {
	return t.Minimum > t.Benchmark
}

// ReserveBasis selects what the maintenance reserve percentage applies to.
type ReserveBasis string

const (
	ReserveOfRent  ReserveBasis = "rent"
	ReserveOfPrice ReserveBasis = "price"
)

// DownPaymentBasis selects how the down payment fraction is chosen.
type DownPaymentBasis string

const (
	// DownPaymentFromFunding uses the funding source's fixed fraction.
	DownPaymentFromFunding DownPaymentBasis = "funding-source"
	// DownPaymentFromCriteria uses the midpoint of the criteria range for
	// every financed source.
	DownPaymentFromCriteria DownPaymentBasis = "criteria-midpoint"
)

// ExpenseAssumptions drive the derived long-term expense lines.
type ExpenseAssumptions struct {
	PropertyTaxRate    Fraction     `json:"propertyTaxRate"`    // annual, of price
	InsuranceMonthly   float64      `json:"insuranceMonthly"`
	VacancyRate        Fraction     `json:"vacancyRate"`        // of rent
	ManagementRate     Fraction     `json:"managementRate"`     // of rent
	MaintenanceReserve Fraction     `json:"maintenanceReserve"` // of rent monthly, or of price annually
	MaintenanceBasis   ReserveBasis `json:"maintenanceBasis"`
}

// ShortTermAssumptions drive the derived short-term rental expense lines.
type ShortTermAssumptions struct {
	UtilitiesMonthly       float64  `json:"utilitiesMonthly"`
	ManagementRate         Fraction `json:"managementRate"`  // of revenue
	MaintenanceRate        Fraction `json:"maintenanceRate"` // of revenue
	CleaningPerOccupiedDay float64  `json:"cleaningPerOccupiedDay"`
	SuppliesMonthly        float64  `json:"suppliesMonthly"`
}

// ShortTermThresholds are optional; a nil field is not checked.
type ShortTermThresholds struct {
	ADRMinimum           *float64  `json:"adrMinimum,omitempty"`
	OccupancyMinimum     *Fraction `json:"occupancyMinimum,omitempty"`
	GrossYieldMinimum    *Fraction `json:"grossYieldMinimum,omitempty"`
	GrossYieldBenchmark  *Fraction `json:"grossYieldBenchmark,omitempty"`
	AnnualRevenueMinimum *float64  `json:"annualRevenueMinimum,omitempty"`
}

// CriteriaConfig is an investor's buy box. Callers receive snapshots via
// Clone and never mutate a shared instance.
type CriteriaConfig struct {
	Name string `json:"name,omitempty"`

	PropertyTypes    []string `json:"propertyTypes,omitempty"`
	Location         string   `json:"location,omitempty"`
	MaxPurchasePrice float64  `json:"maxPurchasePrice"`

	DownPayment       Range            `json:"downPayment"`
	DownPaymentBasis  DownPaymentBasis `json:"downPaymentBasis,omitempty"`
	ClosingCosts      Range            `json:"closingCosts"`
	InitialFixedCosts Fraction         `json:"initialFixedCosts"`

	CapRate    Threshold `json:"capRate"`
	CashOnCash Threshold `json:"cashOnCash"`

	// RequireBenchmark makes benchmark tiers gating instead of informational.
	RequireBenchmark bool `json:"requireBenchmark,omitempty"`

	OnePercentRule Fraction `json:"onePercentRule"`

	Expenses            ExpenseAssumptions   `json:"expenses"`
	ShortTerm           ShortTermAssumptions `json:"shortTerm"`
	ShortTermThresholds ShortTermThresholds  `json:"shortTermThresholds"`
}

// DefaultCriteria is the static fallback used whenever the authoritative
// criteria source is unavailable.
func DefaultCriteria() CriteriaConfig {
	return CriteriaConfig{
		Name:              "default",
		MaxPurchasePrice:  500000,
		DownPayment:       Range{Min: 0.20, Max: 0.25},
		DownPaymentBasis:  DownPaymentFromFunding,
		ClosingCosts:      Range{Min: 0.02, Max: 0.05},
		InitialFixedCosts: 0.01,
		CapRate:           Threshold{Benchmark: 0.08, Minimum: 0.05},
		CashOnCash:        Threshold{Benchmark: 0.10, Minimum: 0.06},
		OnePercentRule:    0.01,
		Expenses: ExpenseAssumptions{
			PropertyTaxRate:    0.012,
			InsuranceMonthly:   100,
			VacancyRate:        0.05,
			ManagementRate:     0.10,
			MaintenanceReserve: 0.05,
			MaintenanceBasis:   ReserveOfRent,
		},
		ShortTerm: ShortTermAssumptions{
			UtilitiesMonthly:       150,
			ManagementRate:         0.15,
			MaintenanceRate:        0.05,
			CleaningPerOccupiedDay: 75,
			SuppliesMonthly:        50,
		},
	}
}

// Clone returns a deep copy so that a snapshot handed to one analysis can
// never be changed by another.
func (c CriteriaConfig) Clone() CriteriaConfig {
	out := c
	if c.PropertyTypes != nil {
		out.PropertyTypes = append([]string(nil), c.PropertyTypes...)
	}
	t := c.ShortTermThresholds
	out.ShortTermThresholds = ShortTermThresholds{
		ADRMinimum:           cloneFloat(t.ADRMinimum),
		OccupancyMinimum:     cloneFraction(t.OccupancyMinimum),
		GrossYieldMinimum:    cloneFraction(t.GrossYieldMinimum),
		GrossYieldBenchmark:  cloneFraction(t.GrossYieldBenchmark),
		AnnualRevenueMinimum: cloneFloat(t.AnnualRevenueMinimum),
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFraction(v *Fraction) *Fraction {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FractionPtr returns a pointer to f.
func FractionPtr(f Fraction) *Fraction {
	return &f
}
