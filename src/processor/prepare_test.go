package processor

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportHeader = []string{
	ColMasterID, ColOrderChannel, ColLastOrderChannel, ColFirstOrderDate, ColLastOrderDate,
	ColLastOrderDateOnline, ColLastOrderDateOffline, ColOrderNumOnline, ColOrderNumOffline,
	ColValueOffline, ColValueOnline, ColInterestedCategories,
}

// exportRow 一行导出数据, 线上/线下最近日期留空
type exportRow struct {
	id         string
	first      string
	last       string
	online     string
	offline    string
	valueOff   string
	valueOn    string
	categories string
}

func rawFrame(rows ...exportRow) dataframe.DataFrame {
	records := [][]string{exportHeader}
	for _, r := range rows {
		records = append(records, []string{
			r.id, "Android App", "Offline", r.first, r.last, "", "",
			r.online, r.offline, r.valueOff, r.valueOn, r.categories,
		})
	}
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
}

// syntheticExport 确定性构造 n 个客户
func syntheticExport(n int) dataframe.DataFrame {
	base := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	categories := []string{"[KADIN]", "[ERKEK, COCUK]", "[AKTIFSPOR]", "[KADIN, ERKEK]", "[COCUK]", "[]"}
	rows := make([]exportRow, n)
	for i := range rows {
		first := base.AddDate(0, 0, (i*13)%500)
		last := first.AddDate(0, 0, (i*29)%300)
		rows[i] = exportRow{
			id:         fmt.Sprintf("c%03d", i),
			first:      first.Format("2006-01-02"),
			last:       last.Format("2006-01-02 15:04:05"),
			online:     fmt.Sprint(1 + (i*7)%9),
			offline:    fmt.Sprint((i * 3) % 4),
			valueOff:   fmt.Sprintf("%.2f", float64((i*53)%700)+10.5),
			valueOn:    fmt.Sprintf("%.2f", float64((i*31)%900)+5.25),
			categories: categories[i%len(categories)],
		}
	}
	return rawFrame(rows...)
}

func TestClipOutliers(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	values[99] = 10000

	low, up := OutlierThresholds(values)
	sorted := sortedCopy(values)
	p1, p99 := Quantile(sorted, 0.01), Quantile(sorted, 0.99)
	assert.InDelta(t, p1-1.5*(p99-p1), low, 1e-9)
	assert.InDelta(t, p99+1.5*(p99-p1), up, 1e-9)

	clipped, n := ClipOutliers(values)
	assert.Equal(t, 1, n)
	assert.Less(t, clipped[99], 10000.0)
	assert.Equal(t, clipped[99], float64(int(clipped[99])))
	assert.Equal(t, values[:99], clipped[:99])

	empty, n := ClipOutliers(nil)
	assert.Empty(t, empty)
	assert.Zero(t, n)
}

func TestPrepareDerivesTotals(t *testing.T) {
	raw := rawFrame(
		exportRow{"a", "2020-01-05", "2021-05-22", "3", "2", "200", "300.5", "[KADIN]"},
		exportRow{"b", "2019/03/01", "2020-11-13", "1", "0", "0", "50", "[ERKEK]"},
		exportRow{"c", "2020-01-01", "2020-02-01", "0", "0", "0", "0", "[]"},
	)
	df, stats, err := Prepare(raw, false)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, []string{"a", "b"}, df.Col(ColMasterID).Records())
	assert.Equal(t, []float64{5, 1}, df.Col(ColOrderNumTotal).Float())
	assert.Equal(t, []float64{500.5, 50}, df.Col(ColCustomerValueTotal).Float())
	assert.Equal(t, []string{"2020-01-05", "2019-03-01"}, df.Col(ColFirstOrderDate).Records())
	assert.Equal(t, []string{"", ""}, df.Col(ColLastOrderDateOnline).Records())
}

func TestPrepareRejectsNonNumeric(t *testing.T) {
	raw := rawFrame(exportRow{"a", "2020-01-05", "2021-05-22", "three", "2", "200", "300", "[KADIN]"})
	_, _, err := Prepare(raw, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColOrderNumOnline)
}

func TestPrepareRejectsMissingColumns(t *testing.T) {
	raw := dataframe.LoadRecords([][]string{{ColMasterID}, {"a"}})
	_, _, err := Prepare(raw, true)
	assert.Error(t, err)
}

func TestPrepareRejectsBadMandatoryDate(t *testing.T) {
	raw := rawFrame(exportRow{"a", "", "2021-05-22", "1", "2", "200", "300", "[KADIN]"})
	_, _, err := Prepare(raw, true)
	assert.Error(t, err)
}

func TestPrepareSuppressesOutliers(t *testing.T) {
	raw := syntheticExport(200)
	records := raw.Records()
	// 一个极端的线上消费额
	records[1][10] = "1000000"
	raw = dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	df, stats, err := Prepare(raw, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Clipped[ColValueOnline])

	values := df.Col(ColValueOnline).Float()
	_, up := OutlierThresholds(mustFloats(t, raw, ColValueOnline))
	assert.Less(t, values[0], 1000000.0)
	assert.LessOrEqual(t, values[0], up+0.5)

	for _, v := range df.Col(ColOrderNumTotal).Float() {
		assert.GreaterOrEqual(t, v, 1.0)
	}
	for _, v := range df.Col(ColCustomerValueTotal).Float() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func mustFloats(t *testing.T, df dataframe.DataFrame, col string) []float64 {
	t.Helper()
	v, err := ParseFloatColumn(df, col)
	require.NoError(t, err)
	return v
}

func TestCollectCustomersMergesDuplicates(t *testing.T) {
	raw := rawFrame(
		exportRow{"a", "2020-03-01", "2021-01-10", "2", "0", "0", "100", "[KADIN]"},
		exportRow{"b", "2020-01-01", "2020-06-01", "1", "0", "0", "40", "[ERKEK]"},
		exportRow{"a", "2019-12-01", "2020-12-01", "1", "1", "30", "20", "[KADIN]"},
	)
	df, _, err := Prepare(raw, false)
	require.NoError(t, err)

	customers, err := collectCustomers(df)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	a := customers[0]
	assert.Equal(t, "a", a.id)
	assert.Equal(t, "2019-12-01", a.firstDate.Format("2006-01-02"))
	assert.Equal(t, "2021-01-10", a.lastDate.Format("2006-01-02"))
	assert.Equal(t, 4.0, a.orders)
	assert.Equal(t, 150.0, a.spend)
	assert.Equal(t, "b", customers[1].id)
}

func TestAnalysisDate(t *testing.T) {
	raw := rawFrame(
		exportRow{"a", "2020-03-01", "2021-05-30", "2", "0", "0", "100", ""},
		exportRow{"b", "2020-01-01", "2020-06-01", "1", "0", "0", "40", ""},
	)
	df, _, err := Prepare(raw, false)
	require.NoError(t, err)

	date, err := AnalysisDate(df, 2)
	require.NoError(t, err)
	assert.Equal(t, "2021-06-01", date.Format("2006-01-02"))

	_, err = AnalysisDate(df.Subset([]int{}), 2)
	assert.Error(t, err)
}
