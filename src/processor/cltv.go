package processor

import (
	"fmt"
	"time"

	"CustomerAnalytics/src/model"
	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CLTV 表的列
const (
	ColRecencyWeekly   = "recency_cltv_weekly"
	ColTWeekly         = "T_weekly"
	ColMonetaryAvg     = "monetary_cltv_avg"
	ColExpSales3Month  = "exp_sales_3_month"
	ColExpSales6Month  = "exp_sales_6_month"
	ColExpAverageValue = "exp_average_value"
	ColCLTV            = "cltv"
	ColCLTVSegment     = "cltv_segment"
)

// TierLabels 价值由低到高
var TierLabels = []string{"D", "C", "B", "A"}

// CLTVOptions 模型与预测参数
type CLTVOptions struct {
	Months       int     // 预测月数
	DiscountRate float64 // 月折现率
	Purchase     model.PurchaseModel
	Value        model.ValueModel
}

// DefaultCLTVOptions 6个月, 1%折现, BG/NBD 惩罚 0.001, Gamma-Gamma 惩罚 0.01
func DefaultCLTVOptions() CLTVOptions {
	return CLTVOptions{
		Months:       6,
		DiscountRate: 0.01,
		Purchase:     model.NewBetaGeo(0.001),
		Value:        model.NewGammaGamma(0.01),
	}
}

// ComputeCLTV 以周为单位构造特征, 拟合两个模型, 计算预期购买次数, 预期客单价与折现价值,
// 再按价值四分位分为 D/C/B/A 四档
func ComputeCLTV(prepared dataframe.DataFrame, analysisDate time.Time, opts CLTVOptions) (dataframe.DataFrame, error) {
	if opts.Purchase == nil || opts.Value == nil {
		return dataframe.DataFrame{}, fmt.Errorf("没有配置购买次数或客单价模型")
	}
	customers, err := collectCustomers(prepared)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	n := len(customers)
	if n < 2 {
		return dataframe.DataFrame{}, fmt.Errorf("至少需要2个客户才能计算CLTV, 实际 %d", n)
	}

	ids := make([]string, n)
	recency := make([]float64, n)
	age := make([]float64, n)
	frequency := make([]float64, n)
	monetary := make([]float64, n)
	for i, c := range customers {
		if c.orders < 1 {
			return dataframe.DataFrame{}, fmt.Errorf("客户 %s 订单数为 %v", c.id, c.orders)
		}
		if analysisDate.Before(c.lastDate) || c.lastDate.Before(c.firstDate) {
			return dataframe.DataFrame{}, fmt.Errorf("客户 %s 订单日期不合法: 首次 %s, 最近 %s",
				c.id, c.firstDate.Format(utils.DateLayout), c.lastDate.Format(utils.DateLayout))
		}
		ids[i] = c.id
		recency[i] = c.lastDate.Sub(c.firstDate).Hours() / 24 / 7
		age[i] = analysisDate.Sub(c.firstDate).Hours() / 24 / 7
		frequency[i] = c.orders
		monetary[i] = c.spend / c.orders
	}

	if err := opts.Purchase.Fit(frequency, recency, age); err != nil {
		return dataframe.DataFrame{}, err
	}
	exp3, err := opts.Purchase.Predict(4*3, frequency, recency, age)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	exp6, err := opts.Purchase.Predict(4*6, frequency, recency, age)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	avgValue, err := expectedAverageValue(opts.Value, frequency, monetary)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	cltv, err := model.LifetimeValue(opts.Purchase, avgValue, frequency, recency, age, opts.Months, opts.DiscountRate)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	tiers, err := TierCLTV(cltv)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.New(
		series.New(ids, series.String, ColCustomerID),
		series.New(recency, series.Float, ColRecencyWeekly),
		series.New(age, series.Float, ColTWeekly),
		series.New(frequency, series.Float, ColFrequency),
		series.New(monetary, series.Float, ColMonetaryAvg),
		series.New(exp3, series.Float, ColExpSales3Month),
		series.New(exp6, series.Float, ColExpSales6Month),
		series.New(avgValue, series.Float, ColExpAverageValue),
		series.New(cltv, series.Float, ColCLTV),
		series.New(tiers, series.String, ColCLTVSegment),
	)
	return df, df.Err
}

// expectedAverageValue 客单价模型只用消费金额为正的客户拟合与预测,
// 其余客户的预期客单价为0, 因而价值也为0
func expectedAverageValue(m model.ValueModel, frequency, monetary []float64) ([]float64, error) {
	var idx []int
	var freq, mon []float64
	for i := range monetary {
		if monetary[i] > 0 {
			idx = append(idx, i)
			freq = append(freq, frequency[i])
			mon = append(mon, monetary[i])
		}
	}

	out := make([]float64, len(monetary))
	if len(idx) == 0 {
		return out, nil
	}
	if err := m.Fit(freq, mon); err != nil {
		return nil, err
	}
	values, err := m.ExpectedAverageValue(freq, mon)
	if err != nil {
		return nil, err
	}
	for k, i := range idx {
		out[i] = values[k]
	}
	return out, nil
}

// TierCLTV 按四分位分档, 价值相同导致边界重复时按排名分档
func TierCLTV(cltv []float64) ([]string, error) {
	idx, _, err := ScoreColumn(cltv, []int{0, 1, 2, 3}, false)
	if err != nil {
		return nil, fmt.Errorf("CLTV 分档: %w", err)
	}
	tiers := make([]string, len(idx))
	for i, k := range idx {
		tiers[i] = TierLabels[k]
	}
	return tiers, nil
}
