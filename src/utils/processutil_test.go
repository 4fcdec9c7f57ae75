package utils

import (
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2021, 5, 30, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2021-05-30", "2021-05-30 17:45:00", "2021/05/30", "05/30/2021", "44346"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	got, err := ParseDate("1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("yesterday")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, time.Date(2021, 5, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysBetween(a, time.Date(2021, 5, 30, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestRequireColumns(t *testing.T) {
	df := dataframe.LoadRecords([][]string{{"a", "b"}, {"1", "2"}})
	assert.True(t, HasColumn(df, "a"))
	assert.NoError(t, RequireColumns(df, "a", "b"))

	err := RequireColumns(df, "a", "c", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c, d")
}

func TestWriteSheet(t *testing.T) {
	df := dataframe.LoadRecords(
		[][]string{{"segment", "count"}, {"champions", "3"}, {"hibernating", "7"}},
		dataframe.DetectTypes(true),
	)
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, WriteSheet(f, "segments", df))

	rows, err := f.GetRows("segments")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"segment", "count"}, {"champions", "3"}, {"hibernating", "7"}}, rows)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]int{1, 2}, 3))
}
