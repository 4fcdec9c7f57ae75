package datapush

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"CustomerAnalytics/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult() *processor.Result {
	rfm := dataframe.New(
		series.New([]string{"c1", "c2", "c3"}, series.String, processor.ColCustomerID),
		series.New([]int{10, 40, 200}, series.Int, processor.ColRecency),
		series.New([]int{5, 2, 1}, series.Int, processor.ColFrequency),
		series.New([]float64{500, 120, 50}, series.Float, processor.ColMonetary),
		series.New([]string{processor.SegChampions, processor.SegLoyalCustomers, processor.SegHibernating}, series.String, processor.ColSegment),
	)
	cltv := dataframe.New(
		series.New([]string{"c1", "c2", "c3"}, series.String, processor.ColCustomerID),
		series.New([]float64{5, 2, 1}, series.Float, processor.ColFrequency),
		series.New([]float64{100, 60, 50}, series.Float, processor.ColMonetaryAvg),
		series.New([]float64{1.2, 0.4, 0.1}, series.Float, processor.ColExpSales6Month),
		series.New([]float64{130.5, 25.25, 4.75}, series.Float, processor.ColCLTV),
		series.New([]string{"A", "B", "D"}, series.String, processor.ColCLTVSegment),
	)
	return &processor.Result{
		AnalysisDate:   time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		RFM:            rfm,
		CLTV:           cltv,
		SegmentSummary: processor.SegmentSummary(rfm),
		TierSummary:    processor.TierSummary(cltv),
		Top:            processor.TopByCLTV(cltv, 20),
		Targets: []processor.TargetList{
			{Campaign: "new_brand", OutputFile: "new_brand_target_customer_ids.csv", IDs: []string{"c1", "c2"}},
			{Campaign: "discount", OutputFile: "discount_target_customer_ids.csv", IDs: []string{}},
		},
	}
}

func TestWriteTargetsIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()

	paths, err := WriteTargets(dir, res.Targets)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	first, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "master_id\nc1\nc2\n", string(first))

	empty, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "master_id\n", string(empty))

	_, err = WriteTargets(dir, res.Targets)
	require.NoError(t, err)
	second, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 不留下临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteTargetListIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows 没有 unix 权限位")
	}
	path, err := WriteTargetList(t.TempDir(), sampleResult().Targets[0])
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestWriteTargetListRequiresFile(t *testing.T) {
	_, err := WriteTargetList(t.TempDir(), processor.TargetList{Campaign: "x"})
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "customer_value.xlsx")
	require.NoError(t, WriteReport(path, sampleResult()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"segments", "cltv_tiers", "top_cltv", "rfm", "cltv", "target_new_brand", "target_discount"}, f.GetSheetList())

	rows, err := f.GetRows("segments")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, processor.ColSegment, rows[0][0])
	assert.Equal(t, processor.SegChampions, rows[1][0])

	rows, err = f.GetRows("target_new_brand")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"master_id"}, {"c1"}, {"c2"}}, rows)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "分析日期: 2021-06-01")
	assert.Contains(t, out, processor.SegHibernating)
	assert.Contains(t, out, "CLTV 前 3 名")
	assert.Contains(t, out, "活动 new_brand: 2 个目标客户")
}

func TestMailerRetries(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteTargets(dir, sampleResult().Targets)
	require.NoError(t, err)

	m := NewMailer("smtp.example.com:465", "bot@example.com", "secret", "", []string{"ops@example.com"})
	m.retryInterval = 0

	var sent []*email.Email
	calls := 0
	m.send = func(e *email.Email) error {
		calls++
		if calls < 3 {
			return errors.New("421 try again")
		}
		sent = append(sent, e)
		return nil
	}

	require.NoError(t, m.Send(sampleResult(), paths))
	assert.Equal(t, 3, calls)
	require.Len(t, sent, 1)
	e := sent[0]
	assert.Equal(t, "客户价值分析 2021-06-01", e.Subject)
	assert.Equal(t, []string{"ops@example.com"}, e.To)
	assert.Len(t, e.Attachments, 2)
	assert.Contains(t, string(e.Text), "RFM 细分")

	calls = 0
	m.send = func(*email.Email) error {
		calls++
		return errors.New("down")
	}
	err = m.Send(sampleResult(), paths)
	require.Error(t, err)
	assert.Equal(t, RETRY_TIMES, calls)

	_, err = m.Compose(sampleResult(), []string{filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)

	m.Recipients = nil
	assert.Error(t, m.Send(sampleResult(), nil))
}
