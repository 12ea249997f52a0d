package contracts

import "time"

// Report section names, in the order every report must present them.
const (
	SectionDaily         = "Daily_Quality_Metrics"
	SectionCustomer      = "Customer_Data_Quality"
	SectionReturnRate    = "Return_Rate_Analysis"
	SectionProduct       = "Product_Quality"
	SectionOverall       = "Overall_Summary"
	SectionAnomalies     = "Anomaly_Details"
	SectionMonthlyTrends = "Monthly_Trends"
)

// SectionOrder is the deterministic order of report sections.
var SectionOrder = []string{
	SectionDaily,
	SectionCustomer,
	SectionReturnRate,
	SectionProduct,
	SectionOverall,
	SectionAnomalies,
	SectionMonthlyTrends,
}

// Section is one tabular block of the report: a header row and data rows,
// ready for whatever sink renders the artifact.
type Section struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// MonthlyTrend is one month of daily metrics re-aggregated: revenue summed,
// quality score averaged, outlier days counted.
type MonthlyTrend struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	TotalRevenue string  `json:"total_revenue"`
	AvgScore     float64 `json:"avg_score"`
	FlaggedDays  int     `json:"flagged_days"`
	Transactions int     `json:"transactions"`
}

// Report is the per-run quality artifact: the seven named sections in
// SectionOrder plus run identification. Purely a reshaping of the
// QualityResult; nothing in it is recomputed.
type Report struct {
	RunDate      time.Time `json:"run_date"`
	GeneratedAt  time.Time `json:"generated_at"`
	OverallScore float64   `json:"overall_score"`
	Passed       bool      `json:"passed"`
	Sections     []Section `json:"sections"`
}

// Section returns the named section, if present.
func (r *Report) Section(name string) (*Section, bool) {
	for i := range r.Sections {
		if r.Sections[i].Name == name {
			return &r.Sections[i], true
		}
	}
	return nil, false
}
