package processor

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// RFM 表的列
const (
	ColCustomerID     = "customer_id"
	ColRecency        = "recency"
	ColFrequency      = "frequency"
	ColMonetary       = "monetary"
	ColRecencyScore   = "recency_score"
	ColFrequencyScore = "frequency_score"
	ColMonetaryScore  = "monetary_score"
	ColRFScore        = "rf_score"
	ColRFMScore       = "rfm_score"
	ColSegment        = "segment"
)

var (
	ascendingLabels  = []int{1, 2, 3, 4, 5}
	descendingLabels = []int{5, 4, 3, 2, 1}
)

// ScoreFallbacks 记录哪些指标因为边界重复改用了排名分箱
type ScoreFallbacks struct {
	Recency  bool
	Monetary bool
}

// ComputeRFM 计算每个客户的 recency / frequency / monetary
// recency 为分析日期与最近订单之间的整天数
func ComputeRFM(prepared dataframe.DataFrame, analysisDate time.Time) (dataframe.DataFrame, error) {
	customers, err := collectCustomers(prepared)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	ids := make([]string, len(customers))
	recency := make([]int, len(customers))
	frequency := make([]int, len(customers))
	monetary := make([]float64, len(customers))
	for i, c := range customers {
		days := utils.DaysBetween(analysisDate, c.lastDate)
		if days < 0 {
			return dataframe.DataFrame{}, fmt.Errorf("客户 %s 最近订单日期 %s 晚于分析日期 %s",
				c.id, c.lastDate.Format(utils.DateLayout), analysisDate.Format(utils.DateLayout))
		}
		if c.orders < 1 {
			return dataframe.DataFrame{}, fmt.Errorf("客户 %s 订单数为 %v", c.id, c.orders)
		}
		ids[i] = c.id
		recency[i] = days
		frequency[i] = int(math.Round(c.orders))
		monetary[i] = c.spend
	}

	return dataframe.New(
		series.New(ids, series.String, ColCustomerID),
		series.New(recency, series.Int, ColRecency),
		series.New(frequency, series.Int, ColFrequency),
		series.New(monetary, series.Float, ColMonetary),
	), nil
}

// ScoreRFM 为 RFM 表打 1-5 分并映射细分
// 最近购买的客户 recency 分最高; frequency 按出现顺序排名后分箱;
// recency 与 monetary 按取值分箱, 边界重复时退回排名分箱
func ScoreRFM(rfm dataframe.DataFrame, table *SegmentTable) (dataframe.DataFrame, ScoreFallbacks, error) {
	var fallbacks ScoreFallbacks
	if err := utils.RequireColumns(rfm, ColCustomerID, ColRecency, ColFrequency, ColMonetary); err != nil {
		return dataframe.DataFrame{}, fallbacks, err
	}

	recencyScore, fb, err := ScoreColumn(rfm.Col(ColRecency).Float(), descendingLabels, false)
	if err != nil {
		return dataframe.DataFrame{}, fallbacks, fmt.Errorf("recency 分箱: %w", err)
	}
	fallbacks.Recency = fb

	frequencyScore, _, err := ScoreColumn(rfm.Col(ColFrequency).Float(), ascendingLabels, true)
	if err != nil {
		return dataframe.DataFrame{}, fallbacks, fmt.Errorf("frequency 分箱: %w", err)
	}

	monetaryScore, fb, err := ScoreColumn(rfm.Col(ColMonetary).Float(), ascendingLabels, false)
	if err != nil {
		return dataframe.DataFrame{}, fallbacks, fmt.Errorf("monetary 分箱: %w", err)
	}
	fallbacks.Monetary = fb

	rf := make([]string, rfm.Nrow())
	rfmCode := make([]string, rfm.Nrow())
	segments := make([]string, rfm.Nrow())
	for i := range rf {
		rf[i] = strconv.Itoa(recencyScore[i]) + strconv.Itoa(frequencyScore[i])
		rfmCode[i] = rf[i] + strconv.Itoa(monetaryScore[i])
		seg, ok := table.Match(recencyScore[i], frequencyScore[i])
		if !ok {
			return dataframe.DataFrame{}, fallbacks, fmt.Errorf("RF编码 %s 没有对应的细分", rf[i])
		}
		segments[i] = seg
	}

	out := rfm.Copy()
	out = out.Mutate(series.New(recencyScore, series.Int, ColRecencyScore))
	out = out.Mutate(series.New(frequencyScore, series.Int, ColFrequencyScore))
	out = out.Mutate(series.New(monetaryScore, series.Int, ColMonetaryScore))
	out = out.Mutate(series.New(rf, series.String, ColRFScore))
	out = out.Mutate(series.New(rfmCode, series.String, ColRFMScore))
	out = out.Mutate(series.New(segments, series.String, ColSegment))
	return out, fallbacks, out.Err
}

// FilterSegments 返回属于给定细分的客户编号(保持RFM表顺序)
func FilterSegments(rfm dataframe.DataFrame, segments []string) ([]string, error) {
	if rfm.Nrow() == 0 || len(segments) == 0 {
		return nil, nil
	}
	matched := rfm.Filter(dataframe.F{
		Colname:    ColSegment,
		Comparator: series.In,
		Comparando: segments,
	})
	if matched.Err != nil {
		return nil, fmt.Errorf("按细分筛选失败: %w", matched.Err)
	}
	if matched.Nrow() == 0 {
		return nil, nil
	}
	return matched.Col(ColCustomerID).Records(), nil
}
