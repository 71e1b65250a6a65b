package tabular

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcatIdenticalSchemas(t *testing.T) {
	a := &Table{
		Columns: []string{"app_name", "leaks"},
		Rows:    []Row{{"app_name": "com.example.a", "leaks": "3"}},
	}
	b := &Table{
		Columns: []string{"app_name", "leaks"},
		Rows:    []Row{{"app_name": "com.example.b", "leaks": "1"}},
	}

	merged, commonOnly, err := Concat(a, b)
	require.NoError(t, err)
	require.False(t, commonOnly)
	require.Len(t, merged.Rows, 2)
	require.Equal(t, a.Columns, merged.Columns)
}

func TestConcatFallsBackToCommonColumns(t *testing.T) {
	a := &Table{
		Columns: []string{"app_name", "leaks", "year"},
		Rows:    []Row{{"app_name": "com.example.a", "leaks": "3", "year": "2019"}},
	}
	b := &Table{
		Columns: []string{"app_name", "leaks", "market"},
		Rows:    []Row{{"app_name": "com.example.b", "leaks": "1", "market": "play"}},
	}

	merged, commonOnly, err := Concat(a, b)
	require.NoError(t, err)
	require.True(t, commonOnly)
	require.Equal(t, []string{"app_name", "leaks"}, merged.Columns)

	for _, row := range merged.Rows {
		_, hasYear := row["year"]
		_, hasMarket := row["market"]
		require.False(t, hasYear)
		require.False(t, hasMarket)
	}
}

func TestConcatNoCommonColumns(t *testing.T) {
	a := &Table{Columns: []string{"x"}}
	b := &Table{Columns: []string{"y"}}

	_, _, err := Concat(a, b)
	require.Error(t, err)
}

func TestConcatWithStats(t *testing.T) {
	a := &Table{
		Columns: []string{"app_name"},
		Rows: []Row{
			{"app_name": "com.example.a"},
			{"app_name": "com.example.a"},
			{"app_name": "com.example.b"},
		},
	}
	b := &Table{
		Columns: []string{"app_name"},
		Rows: []Row{
			{"app_name": "com.example.b"},
			{"app_name": "com.example.c"},
		},
	}

	merged, stats, err := ConcatWithStats(a, b, "app_name")
	require.NoError(t, err)

	require.Len(t, merged.Rows, 5)
	require.Equal(t, 3, stats.RowsLeft)
	require.Equal(t, 2, stats.RowsRight)
	require.Equal(t, 2, stats.UniqueLeft)
	require.Equal(t, 2, stats.UniqueRight)
	require.Equal(t, 3, stats.UniqueCombined)
	require.Equal(t, 1, stats.Overlap)
	require.Equal(t, 1, stats.OnlyLeft)
	require.Equal(t, 1, stats.OnlyRight)
}
