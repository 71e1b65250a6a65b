// Package logscan sorts FlowDroid run logs into categories by scanning their
// content for known markers, then moves the matches into a category
// directory.
package logscan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ymzhao/logleaks/internal/logctx"
)

// Matcher decides whether a log file belongs to a category. The value is a
// numeric payload captured from the content where the category has one
// (leak counts), zero otherwise.
type Matcher interface {
	Match(content string) (matched bool, value int)
}

// SubstringMatcher matches files containing an exact marker line.
type SubstringMatcher struct {
	Needle string
}

func (m SubstringMatcher) Match(content string) (bool, int) {
	return strings.Contains(content, m.Needle), 0
}

var (
	zeroLeaksRe = regexp.MustCompile(`\[main\] INFO soot\.jimple\.infoflow\.android\.SetupApplication - Found 0 leaks`)
	leaksRe     = regexp.MustCompile(`\[main\] INFO soot\.jimple\.infoflow\.android\.SetupApplication - Found (\d+) leaks`)
)

// LeakMatcher matches files reporting a non-zero leak count. An explicit
// "Found 0 leaks" line takes precedence over any other count in the file.
type LeakMatcher struct{}

func (LeakMatcher) Match(content string) (bool, int) {
	if zeroLeaksRe.MatchString(content) {
		return false, 0
	}

	m := leaksRe.FindStringSubmatch(content)
	if m == nil {
		return false, 0
	}

	leaks, err := strconv.Atoi(m[1])
	if err != nil || leaks <= 0 {
		return false, 0
	}

	return true, leaks
}

// ZeroLeakMatcher matches files that completed with zero leaks.
type ZeroLeakMatcher struct{}

func (ZeroLeakMatcher) Match(content string) (bool, int) {
	return zeroLeaksRe.MatchString(content), 0
}

// GenericErrorMatcher matches files with a "[main] ERROR" line that is not
// one of the already-categorized patterns. Only the analysis thread's error
// lines count; ERROR appearing elsewhere in a line (file names, payloads)
// does not.
type GenericErrorMatcher struct {
	Excludes []string
}

func (m GenericErrorMatcher) Match(content string) (bool, int) {
line:
	for _, ln := range strings.Split(content, "\n") {
		if !strings.Contains(ln, "[main] ERROR") {
			continue
		}

		for _, excl := range m.Excludes {
			if strings.Contains(ln, excl) {
				continue line
			}
		}

		return true, 0
	}

	return false, 0
}

// Match is one categorized log file.
type Match struct {
	Path  string
	Leaks int
}

// ScanPath walks a directory (or takes a single file) and returns the files
// whose content the matcher accepts. namePattern filters filenames; nil
// accepts everything. Unreadable files are logged and skipped.
func ScanPath(ctx context.Context, root string, namePattern *regexp.Regexp, m Matcher) ([]Match, error) {
	logger := logctx.LoggerFromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}

	var matches []Match

	check := func(path string) {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("could not read log file", "path", path, "err", err)

			return
		}

		if ok, leaks := m.Match(string(content)); ok {
			matches = append(matches, Match{Path: path, Leaks: leaks})
		}
	}

	if !info.IsDir() {
		check(root)

		return matches, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if namePattern != nil && !namePattern.MatchString(d.Name()) {
			return nil
		}

		check(path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return matches, nil
}

// MoveAll moves matched files into destDir. On a name collision the file
// keeps its base name with a timestamp appended before the extension.
func MoveAll(ctx context.Context, matches []Match, destDir string) (moved, failed int, err error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("failed to create category directory: %w", err)
	}

	for _, match := range matches {
		dest := filepath.Join(destDir, filepath.Base(match.Path))
		if _, statErr := os.Stat(dest); statErr == nil {
			dest = collisionName(dest, time.Now())
		}

		if moveErr := moveFile(match.Path, dest); moveErr != nil {
			logger.Error("failed to move log file", "path", match.Path, "err", moveErr)
			failed++

			continue
		}

		moved++
	}

	return moved, failed, nil
}

// collisionName appends _YYYYMMDD_HHMMSS before the extension.
func collisionName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	return base + "_" + now.Format("20060102_150405") + ext
}

// moveFile renames, falling back to copy-and-remove across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)

		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)

		return err
	}

	in.Close()

	return os.Remove(src)
}
