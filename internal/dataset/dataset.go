// Package dataset selects fetchable work items out of an AndroZoo-style
// metadata table (latest.csv).
package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/tabular"
)

// Columns the metadata table must carry. Their absence is a setup error;
// an empty value inside a present column is a per-item failure instead.
var RequiredColumns = []string{"pkg_name", "markets", "vt_scan_date", "sha256"}

// sampleSeed keeps --sample-rate selections reproducible across runs.
const sampleSeed = 42

// WorkItem is one unit of fetch work. Immutable once read from the table.
type WorkItem struct {
	Identifier  string // package name
	SHA256      string // content hash, keyed into the remote API
	ScanDate    time.Time
	Market      string
	VTDetection string // passed through unchanged
}

// Selection filters the metadata table down to the items a run should fetch.
type Selection struct {
	Market     string  // exact match; empty disables the filter
	YearFrom   int     // inclusive; 0 disables
	YearTo     int     // inclusive; 0 disables
	SampleRate float64 // (0,1) takes a deterministic sample; 1 keeps all
	MaxItems   int     // 0 means unbounded
}

// Load reads the metadata table and validates its header.
func Load(path string) (*tabular.Table, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := table.RequireColumns(path, RequiredColumns...); err != nil {
		return nil, err
	}

	return table, nil
}

// Select applies the selection to the table and returns work items ordered
// newest scan first. Rows with an unparsable scan date are dropped (and
// counted in the log); rows with an empty sha256 are kept so the fetch loop
// can record them as permanent per-item failures.
func Select(ctx context.Context, table *tabular.Table, sel Selection) ([]WorkItem, error) {
	if sel.SampleRate < 0 || sel.SampleRate > 1 {
		return nil, fmt.Errorf("sample rate must be within [0, 1], got %v", sel.SampleRate)
	}

	var items []WorkItem

	dropped := 0

	for _, row := range table.Rows {
		item, ok := itemFromRow(row)
		if !ok {
			dropped++

			continue
		}

		if sel.Market != "" && item.Market != sel.Market {
			continue
		}

		year := item.ScanDate.Year()
		if sel.YearFrom != 0 && year < sel.YearFrom {
			continue
		}

		if sel.YearTo != 0 && year > sel.YearTo {
			continue
		}

		items = append(items, item)
	}

	if dropped > 0 {
		logctx.LoggerFromContext(ctx).Debug("dropped rows with unparsable scan date", "count", dropped)
	}

	if sel.SampleRate > 0 && sel.SampleRate < 1 {
		items = sample(items, sel.SampleRate)
	}

	if sel.MaxItems > 0 && len(items) > sel.MaxItems {
		items = items[:sel.MaxItems]
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ScanDate.After(items[j].ScanDate)
	})

	return items, nil
}

// Resolve maps each app name to its latest scan in the given year, mirroring
// how the leaking-app list is matched against the main table. Names with no
// matching row are returned separately.
func Resolve(ctx context.Context, table *tabular.Table, appNames []string, market string, year int) (found []WorkItem, notFound []string) {
	byName := make(map[string][]WorkItem)

	dropped := 0

	for _, row := range table.Rows {
		item, ok := itemFromRow(row)
		if !ok {
			dropped++

			continue
		}

		if market != "" && item.Market != market {
			continue
		}

		if year != 0 && item.ScanDate.Year() != year {
			continue
		}

		byName[item.Identifier] = append(byName[item.Identifier], item)
	}

	if dropped > 0 {
		logctx.LoggerFromContext(ctx).Debug("dropped rows with unparsable scan date", "count", dropped)
	}

	for _, name := range appNames {
		candidates := byName[name]
		if len(candidates) == 0 {
			notFound = append(notFound, name)

			continue
		}

		latest := candidates[0]
		for _, c := range candidates[1:] {
			if c.ScanDate.After(latest.ScanDate) {
				latest = c
			}
		}

		found = append(found, latest)
	}

	return found, notFound
}

// LoadAppList reads the app_name column of a leaking-app list table.
func LoadAppList(path string) ([]string, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := table.RequireColumns(path, "app_name"); err != nil {
		return nil, err
	}

	var names []string

	for _, row := range table.Rows {
		if name := row["app_name"]; name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

func itemFromRow(row tabular.Row) (WorkItem, bool) {
	scanDate, err := parseScanDate(row["vt_scan_date"])
	if err != nil {
		return WorkItem{}, false
	}

	return WorkItem{
		Identifier:  row["pkg_name"],
		SHA256:      row["sha256"],
		ScanDate:    scanDate,
		Market:      row["markets"],
		VTDetection: row["vt_detection"],
	}, true
}

func parseScanDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparsable scan date %q", value)
}

// sample takes rate*len items pseudo-randomly but reproducibly, preserving
// nothing about the input order (the caller re-sorts).
func sample(items []WorkItem, rate float64) []WorkItem {
	n := int(float64(len(items)) * rate)
	if n == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(sampleSeed))
	perm := rng.Perm(len(items))

	out := make([]WorkItem, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, items[idx])
	}

	return out
}
