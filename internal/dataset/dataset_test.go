package dataset

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ymzhao/logleaks/internal/logctx"
	"github.com/ymzhao/logleaks/internal/tabular"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

const metadataHeader = "sha256,pkg_name,vt_scan_date,markets,vt_detection\n"

func TestLoadRejectsMissingRequiredColumns(t *testing.T) {
	path := writeCSV(t, "sha256,pkg_name\nabc,com.example.app\n")

	_, err := Load(path)
	require.Error(t, err)

	var missing *tabular.MissingColumnsError

	require.True(t, errors.As(err, &missing))
	require.Contains(t, missing.Columns, "vt_scan_date")
	require.Contains(t, missing.Columns, "markets")
}

func TestSelectFiltersMarketAndYears(t *testing.T) {
	path := writeCSV(t, metadataHeader+
		"a1,com.example.old,2015-06-01 10:00:00,play.google.com,0\n"+
		"a2,com.example.kept,2018-06-01 10:00:00,play.google.com,0\n"+
		"a3,com.example.other,2018-06-01 10:00:00,appchina,0\n"+
		"a4,com.example.new,2022-06-01 10:00:00,play.google.com,0\n"+
		"a5,com.example.badday,not-a-date,play.google.com,0\n")

	table, err := Load(path)
	require.NoError(t, err)

	items, err := Select(context.Background(), table, Selection{Market: "play.google.com", YearFrom: 2016, YearTo: 2021})
	require.NoError(t, err)

	require.Len(t, items, 1)
	require.Equal(t, "com.example.kept", items[0].Identifier)
	require.Equal(t, "a2", items[0].SHA256)
}

func TestSelectKeepsRowsWithEmptyHash(t *testing.T) {
	path := writeCSV(t, metadataHeader+
		",com.example.nohash,2018-06-01 10:00:00,play.google.com,0\n")

	table, err := Load(path)
	require.NoError(t, err)

	items, err := Select(context.Background(), table, Selection{})
	require.NoError(t, err)

	// Empty hashes are the fetch loop's per-item failure, not a drop.
	require.Len(t, items, 1)
	require.Empty(t, items[0].SHA256)
}

func TestSelectOrdersNewestFirstAndCaps(t *testing.T) {
	path := writeCSV(t, metadataHeader+
		"a1,com.example.one,2017-01-01 00:00:00,play.google.com,0\n"+
		"a2,com.example.two,2019-01-01 00:00:00,play.google.com,0\n"+
		"a3,com.example.three,2018-01-01 00:00:00,play.google.com,0\n")

	table, err := Load(path)
	require.NoError(t, err)

	items, err := Select(context.Background(), table, Selection{MaxItems: 2})
	require.NoError(t, err)

	require.Len(t, items, 2)
	require.True(t, items[0].ScanDate.After(items[1].ScanDate))
}

func TestSelectSampleIsDeterministic(t *testing.T) {
	content := metadataHeader
	rows := []string{
		"a1,com.example.a,2018-01-01 00:00:00,play.google.com,0\n",
		"a2,com.example.b,2018-02-01 00:00:00,play.google.com,0\n",
		"a3,com.example.c,2018-03-01 00:00:00,play.google.com,0\n",
		"a4,com.example.d,2018-04-01 00:00:00,play.google.com,0\n",
	}
	for _, r := range rows {
		content += r
	}

	table, err := Load(writeCSV(t, content))
	require.NoError(t, err)

	first, err := Select(context.Background(), table, Selection{SampleRate: 0.5})
	require.NoError(t, err)

	second, err := Select(context.Background(), table, Selection{SampleRate: 0.5})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Equal(t, first, second)
}

func TestSelectLogsDroppedRowCount(t *testing.T) {
	path := writeCSV(t, metadataHeader+
		"a1,com.example.ok,2018-06-01 10:00:00,play.google.com,0\n"+
		"a2,com.example.bad1,not-a-date,play.google.com,0\n"+
		"a3,com.example.bad2,,play.google.com,0\n")

	table, err := Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logctx.WithLogger(context.Background(), logger)

	items, err := Select(ctx, table, Selection{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Contains(t, buf.String(), "unparsable scan date")
	require.Contains(t, buf.String(), "count=2")
}

func TestSelectRejectsInvalidSampleRate(t *testing.T) {
	table := &tabular.Table{Columns: RequiredColumns}

	_, err := Select(context.Background(), table, Selection{SampleRate: 1.5})
	require.Error(t, err)

	_, err = Select(context.Background(), table, Selection{SampleRate: -0.1})
	require.Error(t, err)
}

func TestResolvePicksLatestScanPerApp(t *testing.T) {
	path := writeCSV(t, metadataHeader+
		"a1,com.example.app,2019-02-01 00:00:00,play.google.com,0\n"+
		"a2,com.example.app,2019-09-01 00:00:00,play.google.com,0\n"+
		"a3,com.example.app,2020-01-01 00:00:00,play.google.com,0\n")

	table, err := Load(path)
	require.NoError(t, err)

	found, notFound := Resolve(context.Background(), table, []string{"com.example.app", "com.example.gone"}, "play.google.com", 2019)

	require.Len(t, found, 1)
	require.Equal(t, "a2", found[0].SHA256, "must pick the latest scan inside the year")
	require.Equal(t, []string{"com.example.gone"}, notFound)
}

func TestLoadAppList(t *testing.T) {
	path := writeCSV(t, "app_name,leaks\ncom.example.a,3\ncom.example.b,1\n,0\n")

	names, err := LoadAppList(path)
	require.NoError(t, err)
	require.Equal(t, []string{"com.example.a", "com.example.b"}, names)
}

func TestLoadAppListRequiresAppNameColumn(t *testing.T) {
	path := writeCSV(t, "pkg,leaks\ncom.example.a,3\n")

	_, err := LoadAppList(path)

	var missing *tabular.MissingColumnsError

	require.True(t, errors.As(err, &missing))
}
