package shared

import "fmt"

// Fiscal period helpers shared by the statement engine and its HTTP layer.
// Periods are calendar months 1..12; quarters are 1..4.

// ValidPeriod reports whether p is a fiscal month.
func ValidPeriod(p int) bool { return p >= 1 && p <= 12 }

// ValidQuarter reports whether q is a fiscal quarter.
func ValidQuarter(q int) bool { return q >= 1 && q <= 4 }

// QuarterOf returns the quarter containing the month.
func QuarterOf(period int) int {
	if !ValidPeriod(period) {
		return 0
	}
	return (period-1)/3 + 1
}

// QuarterBounds returns the first and last month of a quarter.
func QuarterBounds(quarter int) (int, int) {
	if !ValidQuarter(quarter) {
		return 0, 0
	}
	start := (quarter-1)*3 + 1
	return start, start + 2
}

// PeriodLabel formats a month as its display code, e.g. 3 -> "P03".
func PeriodLabel(period int) string {
	return fmt.Sprintf("P%02d", period)
}

// MonthName returns the short English month name for a fiscal period.
func MonthName(period int) string {
	names := [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	if !ValidPeriod(period) {
		return ""
	}
	return names[period-1]
}
