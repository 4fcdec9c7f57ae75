package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 导出文件中的列
const (
	ColMasterID             = "master_id"
	ColOrderChannel         = "order_channel"
	ColLastOrderChannel     = "last_order_channel"
	ColFirstOrderDate       = "first_order_date"
	ColLastOrderDate        = "last_order_date"
	ColLastOrderDateOnline  = "last_order_date_online"
	ColLastOrderDateOffline = "last_order_date_offline"
	ColOrderNumOnline       = "order_num_total_ever_online"
	ColOrderNumOffline      = "order_num_total_ever_offline"
	ColValueOffline         = "customer_value_total_ever_offline"
	ColValueOnline          = "customer_value_total_ever_online"
	ColInterestedCategories = "interested_in_categories_12"
	ColOrderNumTotal        = "order_num_total"
	ColCustomerValueTotal   = "customer_value_total"
)

// NumericColumns 需要做异常值压缩的四列
var NumericColumns = []string{ColOrderNumOnline, ColOrderNumOffline, ColValueOffline, ColValueOnline}

// PrepareStats 数据准备过程的统计, 用于日志
type PrepareStats struct {
	Rows     int
	Excluded int            // 订单数为0被剔除的客户
	Clipped  map[string]int // 每列被压缩的值个数
}

// OutlierThresholds 以1%和99%分位数为基础的上下限
func OutlierThresholds(values []float64) (low, up float64) {
	sorted := sortedCopy(values)
	q1 := Quantile(sorted, 0.01)
	q3 := Quantile(sorted, 0.99)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// ClipOutliers 低于下限的值替换为下限, 高于上限的值替换为上限, 替换值四舍六入取整
func ClipOutliers(values []float64) ([]float64, int) {
	if len(values) == 0 {
		return values, 0
	}
	low, up := OutlierThresholds(values)
	out := make([]float64, len(values))
	clipped := 0
	for i, v := range values {
		switch {
		case v < low:
			out[i] = math.RoundToEven(low)
			clipped++
		case v > up:
			out[i] = math.RoundToEven(up)
			clipped++
		default:
			out[i] = v
		}
	}
	return out, clipped
}

// ParseFloatColumn 把字符串列转换为浮点数, 任何无法转换的单元格都返回错误
func ParseFloatColumn(df dataframe.DataFrame, col string) ([]float64, error) {
	records := df.Col(col).Records()
	values := make([]float64, len(records))
	for i, rec := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec), 64)
		if err != nil {
			return nil, fmt.Errorf("列 %s 第 %d 行: %q 不是数字", col, i+1, rec)
		}
		values[i] = v
	}
	return values, nil
}

// Prepare 清洗原始导出数据
//  1. 四个数值列转换为浮点数, 可选做异常值压缩
//  2. 生成总订单数与总消费额
//  3. 日期列统一为 2006-01-02
//  4. 剔除总订单数小于1的客户
func Prepare(raw dataframe.DataFrame, suppressOutliers bool) (dataframe.DataFrame, PrepareStats, error) {
	stats := PrepareStats{Rows: raw.Nrow(), Clipped: map[string]int{}}

	required := append([]string{ColMasterID, ColFirstOrderDate, ColLastOrderDate}, NumericColumns...)
	if err := utils.RequireColumns(raw, required...); err != nil {
		return dataframe.DataFrame{}, stats, err
	}

	df := raw.Copy()
	numeric := make(map[string][]float64, len(NumericColumns))
	for _, col := range NumericColumns {
		values, err := ParseFloatColumn(df, col)
		if err != nil {
			return dataframe.DataFrame{}, stats, err
		}
		if suppressOutliers {
			var n int
			values, n = ClipOutliers(values)
			stats.Clipped[col] = n
		}
		numeric[col] = values
		df = df.Mutate(series.New(values, series.Float, col))
	}

	orders := make([]float64, df.Nrow())
	spend := make([]float64, df.Nrow())
	for i := range orders {
		orders[i] = numeric[ColOrderNumOnline][i] + numeric[ColOrderNumOffline][i]
		spend[i] = numeric[ColValueOffline][i] + numeric[ColValueOnline][i]
	}
	df = df.Mutate(series.New(orders, series.Float, ColOrderNumTotal))
	df = df.Mutate(series.New(spend, series.Float, ColCustomerValueTotal))

	var err error
	if df, err = normalizeDates(df); err != nil {
		return dataframe.DataFrame{}, stats, err
	}

	df = df.Filter(dataframe.F{Colname: ColOrderNumTotal, Comparator: series.GreaterEq, Comparando: 1.0})
	if df.Err != nil {
		return dataframe.DataFrame{}, stats, df.Err
	}
	stats.Excluded = stats.Rows - df.Nrow()
	return df, stats, nil
}

// normalizeDates 列名包含 date 的列统一格式
// 首次/最近订单日期必须有值, 线上/线下最近日期允许为空
func normalizeDates(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	for _, col := range df.Names() {
		if !strings.Contains(col, "date") {
			continue
		}
		mandatory := col == ColFirstOrderDate || col == ColLastOrderDate
		records := df.Col(col).Records()
		normalized := make([]string, len(records))
		for i, rec := range records {
			if strings.TrimSpace(rec) == "" && !mandatory {
				continue
			}
			t, err := utils.ParseDate(rec)
			if err != nil {
				return df, fmt.Errorf("列 %s 第 %d 行: %w", col, i+1, err)
			}
			normalized[i] = t.Format(utils.DateLayout)
		}
		df = df.Mutate(series.New(normalized, series.String, col))
	}
	return df, nil
}

// customer 一个客户的聚合数据
type customer struct {
	id        string
	firstDate time.Time
	lastDate  time.Time
	orders    float64
	spend     float64
}

// collectCustomers 从准备好的数据中按 master_id 聚合
// 重复出现的客户: 首次日期取最早, 最近日期取最晚, 订单数与金额累加, 保留首次出现的位置
func collectCustomers(df dataframe.DataFrame) ([]customer, error) {
	if err := utils.RequireColumns(df, ColMasterID, ColFirstOrderDate, ColLastOrderDate, ColOrderNumTotal, ColCustomerValueTotal); err != nil {
		return nil, err
	}
	ids := df.Col(ColMasterID).Records()
	firsts := df.Col(ColFirstOrderDate).Records()
	lasts := df.Col(ColLastOrderDate).Records()
	orders := df.Col(ColOrderNumTotal).Float()
	spend := df.Col(ColCustomerValueTotal).Float()

	index := make(map[string]int, len(ids))
	customers := make([]customer, 0, len(ids))
	for i, id := range ids {
		first, err := time.Parse(utils.DateLayout, firsts[i])
		if err != nil {
			return nil, fmt.Errorf("客户 %s 首次订单日期: %w", id, err)
		}
		last, err := time.Parse(utils.DateLayout, lasts[i])
		if err != nil {
			return nil, fmt.Errorf("客户 %s 最近订单日期: %w", id, err)
		}

		if pos, ok := index[id]; ok {
			c := &customers[pos]
			if first.Before(c.firstDate) {
				c.firstDate = first
			}
			if last.After(c.lastDate) {
				c.lastDate = last
			}
			c.orders += orders[i]
			c.spend += spend[i]
			continue
		}
		index[id] = len(customers)
		customers = append(customers, customer{id: id, firstDate: first, lastDate: last, orders: orders[i], spend: spend[i]})
	}
	return customers, nil
}

// AnalysisDate 最近一次订单之后 daysAfter 天
func AnalysisDate(df dataframe.DataFrame, daysAfter int) (time.Time, error) {
	if df.Nrow() == 0 {
		return time.Time{}, fmt.Errorf("没有客户数据, 无法确定分析日期")
	}
	var latest time.Time
	for i, rec := range df.Col(ColLastOrderDate).Records() {
		t, err := time.Parse(utils.DateLayout, rec)
		if err != nil {
			return time.Time{}, fmt.Errorf("列 %s 第 %d 行: %w", ColLastOrderDate, i+1, err)
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest.AddDate(0, 0, daysAfter), nil
}
