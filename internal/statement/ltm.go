package statement

import (
	"fmt"
	"sort"

	"github.com/meridian-fin/meridian/internal/shared"
)

// LatestPeriod returns the most recent (year, period) slot that has at
// least one movement row.
func LatestPeriod(table []MovementRecord) (PeriodRef, error) {
	if len(table) == 0 {
		return PeriodRef{}, &shared.DataError{Reason: "statement: no movement data for ltm window"}
	}
	latest := PeriodRef{Year: table[0].Year, Period: table[0].Period}
	for _, row := range table[1:] {
		if row.Year > latest.Year || (row.Year == latest.Year && row.Period > latest.Period) {
			latest = PeriodRef{Year: row.Year, Period: row.Period}
		}
	}
	return latest, nil
}

// ltmMonths is the rolling-window length every caller uses today.
const ltmMonths = 12

// LTMWindow expands the rolling months window ending at latest into
// per-year contiguous ranges. A window that fits inside the latest
// fiscal year stays in one range; otherwise it splits across the
// boundary:
//
//	latest 2025/P06, 12 months -> [{2024 P07..P12} {2025 P01..P06}]
//	latest 2025/P12, 12 months -> [{2025 P01..P12}]
func LTMWindow(latest PeriodRef, months int) ([]LTMRange, error) {
	if !shared.ValidPeriod(latest.Period) {
		return nil, &shared.ValidationError{Subject: "ltm window", Reason: fmt.Sprintf("period %d out of range", latest.Period)}
	}
	if months < 1 || months > 12 {
		return nil, &shared.ValidationError{Subject: "ltm window", Reason: fmt.Sprintf("window length %d out of range", months)}
	}
	if months <= latest.Period {
		return []LTMRange{{Year: latest.Year, StartPeriod: latest.Period - months + 1, EndPeriod: latest.Period}}, nil
	}
	carry := months - latest.Period
	return []LTMRange{
		{Year: latest.Year - 1, StartPeriod: 13 - carry, EndPeriod: 12},
		{Year: latest.Year, StartPeriod: 1, EndPeriod: latest.Period},
	}, nil
}

// InLTMWindow reports whether a (year, period) slot falls inside the window.
func InLTMWindow(ranges []LTMRange, year, period int) bool {
	for _, r := range ranges {
		if year == r.Year && period >= r.StartPeriod && period <= r.EndPeriod {
			return true
		}
	}
	return false
}

// FilterLTM keeps only the rows inside the window.
func FilterLTM(table []MovementRecord, ranges []LTMRange) []MovementRecord {
	out := make([]MovementRecord, 0, len(table))
	for _, row := range table {
		if InLTMWindow(ranges, row.Year, row.Period) {
			out = append(out, row)
		}
	}
	return out
}

// CheckLTMAvailability verifies that every slot of the window has data.
// Gaps are reported but never fatal; generation proceeds with whatever is
// present.
func CheckLTMAvailability(table []MovementRecord, ranges []LTMRange) LTMAvailability {
	present := make(map[PeriodRef]bool, 12)
	for _, row := range table {
		present[PeriodRef{Year: row.Year, Period: row.Period}] = true
	}
	var missing []string
	for _, r := range ranges {
		for p := r.StartPeriod; p <= r.EndPeriod; p++ {
			if !present[PeriodRef{Year: r.Year, Period: p}] {
				missing = append(missing, fmt.Sprintf("%d-%s", r.Year, shared.PeriodLabel(p)))
			}
		}
	}
	if len(missing) == 0 {
		return LTMAvailability{Complete: true}
	}
	sort.Strings(missing)
	return LTMAvailability{
		Complete: false,
		Message:  fmt.Sprintf("ltm window missing data for %v", missing),
	}
}

// BuildLTMInfo resolves the rolling-window context from the table: the
// latest loaded slot, the per-year ranges, the filtered rows and the
// availability flag. Statement generation passes ltmMonths.
func BuildLTMInfo(table []MovementRecord, months int) (LTMInfo, error) {
	latest, err := LatestPeriod(table)
	if err != nil {
		return LTMInfo{}, err
	}
	ranges, err := LTMWindow(latest, months)
	if err != nil {
		return LTMInfo{}, err
	}
	return LTMInfo{
		Ranges:       ranges,
		Latest:       latest,
		Label:        fmt.Sprintf("LTM %s %d", shared.MonthName(latest.Period), latest.Year),
		FilteredData: FilterLTM(table, ranges),
		Availability: CheckLTMAvailability(table, ranges),
	}, nil
}

// LTMColumns lays out the monthly columns of an LTM grid in window order,
// oldest first, followed by the rolling total column. At most 13 columns.
func LTMColumns(info LTMInfo) []ColumnSpec {
	cols := make([]ColumnSpec, 0, 13)
	for _, r := range info.Ranges {
		for p := r.StartPeriod; p <= r.EndPeriod; p++ {
			cols = append(cols, ColumnSpec{
				Key:         fmt.Sprintf("%d-%s", r.Year, shared.PeriodLabel(p)),
				Year:        r.Year,
				StartPeriod: p,
				EndPeriod:   p,
				Label:       fmt.Sprintf("%s %d", shared.MonthName(p), r.Year),
			})
		}
	}
	cols = append(cols, ColumnSpec{
		Key:         "ltm",
		Year:        info.Latest.Year,
		StartPeriod: 1,
		EndPeriod:   info.Latest.Period,
		Label:       info.Label,
	})
	return cols
}
