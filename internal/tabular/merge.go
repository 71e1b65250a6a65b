package tabular

import (
	"fmt"
)

// MergeStats summarizes a Concat of two tables keyed on a column (usually app_name).
type MergeStats struct {
	RowsLeft       int
	RowsRight      int
	UniqueLeft     int
	UniqueRight    int
	UniqueCombined int
	Overlap        int
	OnlyLeft       int
	OnlyRight      int
	CommonOnly     bool // schemas differed and the merge fell back to common columns
}

// Concat appends the rows of b to a. When the schemas differ the result is
// reduced to the columns the two tables share, in a's order; no common
// columns is an error.
func Concat(a, b *Table) (*Table, bool, error) {
	columns := a.Columns
	commonOnly := false

	if !sameColumns(a.Columns, b.Columns) {
		columns = commonColumns(a.Columns, b.Columns)
		commonOnly = true

		if len(columns) == 0 {
			return nil, false, fmt.Errorf("tables share no common columns")
		}
	}

	out := &Table{Columns: columns}

	for _, src := range []*Table{a, b} {
		for _, row := range src.Rows {
			nr := make(Row, len(columns))
			for _, col := range columns {
				nr[col] = row[col]
			}

			out.Rows = append(out.Rows, nr)
		}
	}

	return out, commonOnly, nil
}

// ConcatWithStats merges and computes unique/overlap counts on keyColumn.
// A missing key column yields zero counts, not an error.
func ConcatWithStats(a, b *Table, keyColumn string) (*Table, *MergeStats, error) {
	merged, commonOnly, err := Concat(a, b)
	if err != nil {
		return nil, nil, err
	}

	stats := &MergeStats{
		RowsLeft:   len(a.Rows),
		RowsRight:  len(b.Rows),
		CommonOnly: commonOnly,
	}

	if merged.HasColumn(keyColumn) {
		left := toSet(a.UniqueValues(keyColumn))
		right := toSet(b.UniqueValues(keyColumn))

		stats.UniqueLeft = len(left)
		stats.UniqueRight = len(right)
		stats.UniqueCombined = len(merged.UniqueValues(keyColumn))

		for v := range left {
			if right[v] {
				stats.Overlap++
			} else {
				stats.OnlyLeft++
			}
		}

		for v := range right {
			if !left[v] {
				stats.OnlyRight++
			}
		}
	}

	return merged, stats, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func commonColumns(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}

	var common []string

	for _, c := range a {
		if inB[c] {
			common = append(common, c)
		}
	}

	return common
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	return set
}
