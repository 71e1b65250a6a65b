package logscan

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// WriteReport saves the list of matched files, highest leak count first.
func WriteReport(path, title string, matches []Match) error {
	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Leaks != sorted[j].Leaks {
			return sorted[i].Leaks > sorted[j].Leaks
		}

		return sorted[i].Path < sorted[j].Path
	})

	var b strings.Builder

	fmt.Fprintf(&b, "%s - %s\n\n", title, time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "SUMMARY\n-------\n")
	fmt.Fprintf(&b, "Total matching files: %d\n\n", len(sorted))
	fmt.Fprintf(&b, "MATCHING FILES\n--------------\n")

	if len(sorted) == 0 {
		b.WriteString("No matching files were found.\n")
	}

	for i, m := range sorted {
		if m.Leaks > 0 {
			fmt.Fprintf(&b, "%d. %s - Found %d leaks\n", i+1, m.Path, m.Leaks)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m.Path)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
