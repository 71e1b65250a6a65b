package tabular

import "strings"

// SplitContains partitions the rows on whether the column's value contains
// the needle, case-insensitive. Both halves keep the full column set.
func (t *Table) SplitContains(column, needle string) (with, without *Table) {
	with = &Table{Columns: t.Columns}
	without = &Table{Columns: t.Columns}

	lowered := strings.ToLower(needle)

	for _, row := range t.Rows {
		if strings.Contains(strings.ToLower(row[column]), lowered) {
			with.Rows = append(with.Rows, row)
		} else {
			without.Rows = append(without.Rows, row)
		}
	}

	return with, without
}

// FilterContainsAny keeps the rows whose column contains any of the needles,
// case-insensitive. The returned counts tally every needle independently, so
// a row matching two needles contributes to both.
func (t *Table) FilterContainsAny(column string, needles []string) (*Table, map[string]int) {
	out := &Table{Columns: t.Columns}
	counts := make(map[string]int, len(needles))

	lowered := make([]string, len(needles))
	for i, n := range needles {
		lowered[i] = strings.ToLower(n)
	}

	for _, row := range t.Rows {
		value := strings.ToLower(row[column])

		matched := false

		for i, n := range lowered {
			if strings.Contains(value, n) {
				counts[needles[i]]++
				matched = true
			}
		}

		if matched {
			out.Rows = append(out.Rows, row)
		}
	}

	return out, counts
}
