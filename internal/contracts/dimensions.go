package contracts

import "time"

// Dimension identifies one of the four warehouse dimensions.
type Dimension string

const (
	DimProduct  Dimension = "product"
	DimCustomer Dimension = "customer"
	DimTime     Dimension = "time"
	DimCountry  Dimension = "country"
)

// String returns the dimension name.
func (d Dimension) String() string {
	return string(d)
}

// Table returns the warehouse table backing the dimension.
func (d Dimension) Table() string {
	switch d {
	case DimProduct:
		return "dim_product"
	case DimCustomer:
		return "dim_customer"
	case DimTime:
		return "dim_time"
	case DimCountry:
		return "dim_country"
	default:
		return ""
	}
}

// TimeNaturalKey is the natural-key encoding for the time dimension.
const TimeNaturalKey = "2006-01-02"

// TimeAttributes holds the derived calendar attributes of one dim_time row.
// Derived once per distinct date by the resolver, not per transaction.
type TimeAttributes struct {
	Date       time.Time `json:"date_value"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	MonthName  string    `json:"month_name"`
	Quarter    int       `json:"quarter"`
	DayOfMonth int       `json:"day_of_month"`
	DayOfWeek  int       `json:"day_of_week"` // 1=Monday .. 7=Sunday
	DayName    string    `json:"day_name"`
	IsWeekend  bool      `json:"is_weekend"`
}

// DimensionAttributes carries the non-key payload of a dimension insert.
// Only the fields relevant to the target dimension are set: Description for
// product, CountryKey for customer, Time for the time dimension.
type DimensionAttributes struct {
	Description string
	CountryKey  int64
	Time        *TimeAttributes
}
