package classify

import (
	"strconv"

	"github.com/ymzhao/logleaks/internal/tabular"
)

// sinkColumn is the column FlowDroid data-flow exports carry the sink
// statement in.
const sinkColumn = "sink"

// Result is the classification of one table against one library.
type Result struct {
	Detail  *tabular.Table // related rows with their assigned level
	Summary *tabular.Table // level, count, percentage over related rows
	Counts  map[string]int
	Related int // rows gated in by the indicator list
	Total   int // all rows in the input
}

// Run classifies the sink column of a table. A missing sink column aborts
// this table only; the caller decides whether to continue with other inputs.
func Run(rs *RuleSet, table *tabular.Table, path string) (*Result, error) {
	if err := table.RequireColumns(path, sinkColumn); err != nil {
		return nil, err
	}

	hasApp := table.HasColumn("app_name")

	detailColumns := []string{sinkColumn, "log_level"}
	if hasApp {
		detailColumns = []string{"app_name", sinkColumn, "log_level"}
	}

	res := &Result{
		Detail:  &tabular.Table{Columns: detailColumns},
		Counts:  make(map[string]int),
		Total:   len(table.Rows),
	}

	for _, row := range table.Rows {
		sink := row[sinkColumn]
		if !rs.IsRelated(sink) {
			continue
		}

		level := rs.Classify(sink)
		res.Related++
		res.Counts[level]++

		detail := tabular.Row{sinkColumn: sink, "log_level": level}
		if hasApp {
			detail["app_name"] = row["app_name"]
		}

		res.Detail.Rows = append(res.Detail.Rows, detail)
	}

	res.Summary = summarize(rs, res.Counts, res.Related)

	return res, nil
}

// summarize orders levels by rule priority with the library's OTHER label
// last, keeping only levels that occur.
func summarize(rs *RuleSet, counts map[string]int, related int) *tabular.Table {
	summary := &tabular.Table{Columns: []string{"log_level", "count", "percentage"}}

	for _, label := range append(rs.Labels(), rs.OtherLabel) {
		count := counts[label]
		if count == 0 {
			continue
		}

		pct := 0.0
		if related > 0 {
			pct = float64(count) * 100 / float64(related)
		}

		summary.Rows = append(summary.Rows, tabular.Row{
			"log_level":  label,
			"count":      strconv.Itoa(count),
			"percentage": strconv.FormatFloat(pct, 'f', 1, 64),
		})
	}

	return summary
}
