// data.go
package processor

import (
	"fmt"
	"time"

	"CustomerAnalytics/src/config"
	"CustomerAnalytics/src/model"
	"CustomerAnalytics/src/storage"
	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// Options 一次分析的参数
type Options struct {
	AnalysisDate       time.Time // 零值时取最后订单日期之后 DaysAfterLastOrder 天
	DaysAfterLastOrder int
	SuppressOutliers   bool
	CLTVMonths         int
	DiscountRate       float64
	BGPenalizer        float64
	GGPenalizer        float64
	TopN               int
	Campaigns          []config.Campaign
}

// OptionsFromConfig 由配置文件生成参数, 没有活动配置时使用默认活动
func OptionsFromConfig(cfg *config.Config, campaigns *config.CampaignConfig) (Options, error) {
	date, err := cfg.Analysis.ParsedAnalysisDate()
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		AnalysisDate:       date,
		DaysAfterLastOrder: cfg.Analysis.DaysAfterLastOrder,
		SuppressOutliers:   cfg.Analysis.OutlierSuppression(),
		CLTVMonths:         cfg.Analysis.CLTVMonths,
		DiscountRate:       cfg.Analysis.DiscountRate,
		BGPenalizer:        cfg.Analysis.BGPenalizer,
		GGPenalizer:        cfg.Analysis.GGPenalizer,
		TopN:               cfg.Analysis.TopN,
		Campaigns:          config.DefaultCampaigns(),
	}
	if campaigns != nil && len(campaigns.Campaigns) > 0 {
		opts.Campaigns = campaigns.Campaigns
	}
	return opts, nil
}

// DefaultOptions 与默认配置一致的参数
func DefaultOptions() Options {
	cltv := DefaultCLTVOptions()
	return Options{
		DaysAfterLastOrder: 2,
		SuppressOutliers:   true,
		CLTVMonths:         cltv.Months,
		DiscountRate:       cltv.DiscountRate,
		BGPenalizer:        0.001,
		GGPenalizer:        0.01,
		TopN:               20,
		Campaigns:          config.DefaultCampaigns(),
	}
}

// Result 一次分析的全部产出
type Result struct {
	AnalysisDate   time.Time
	Stats          PrepareStats
	Fallbacks      ScoreFallbacks
	Prepared       dataframe.DataFrame
	RFM            dataframe.DataFrame
	CLTV           dataframe.DataFrame
	SegmentSummary dataframe.DataFrame
	TierSummary    dataframe.DataFrame
	Top            dataframe.DataFrame
	Targets        []TargetList
}

type DataProcessor struct {
	df     dataframe.DataFrame
	opts   Options
	table  *SegmentTable
	logger *storage.Logger

	prepared dataframe.DataFrame
	result   *Result
}

func NewDataProcessor(df dataframe.DataFrame, opts Options, logger *storage.Logger) (*DataProcessor, error) {
	table, err := NewSegmentTable(DefaultSegmentRules())
	if err != nil {
		return nil, err
	}
	return &DataProcessor{df: df, opts: opts, table: table, logger: logger}, nil
}

// CleanData 数据清洗: 数值转换, 异常值压缩, 日期统一, 剔除无订单客户
func (p *DataProcessor) CleanData() error {
	prepared, stats, err := Prepare(p.df, p.opts.SuppressOutliers)
	if err != nil {
		return fmt.Errorf("数据准备失败: %w", err)
	}
	for _, col := range NumericColumns {
		if n := stats.Clipped[col]; n > 0 {
			p.logger.Debug(fmt.Sprintf("列 %s 压缩了 %d 个异常值", col, n))
		}
	}
	if stats.Excluded > 0 {
		p.logger.Warning(fmt.Sprintf("剔除了 %d 个订单数为0的客户", stats.Excluded))
	}
	p.prepared = prepared
	p.result = &Result{Stats: stats, Prepared: prepared}
	return nil
}

// Run 依次完成 RFM 细分, CLTV 预测, 汇总与目标客户筛选
func (p *DataProcessor) Run() (*Result, error) {
	if p.result == nil {
		if err := p.CleanData(); err != nil {
			return nil, err
		}
	}
	res := p.result

	analysisDate := p.opts.AnalysisDate
	if analysisDate.IsZero() {
		var err error
		if analysisDate, err = AnalysisDate(p.prepared, p.opts.DaysAfterLastOrder); err != nil {
			return nil, err
		}
	}
	res.AnalysisDate = analysisDate
	p.logger.Info(fmt.Sprintf("分析日期 %s, 客户 %d 行", analysisDate.Format(utils.DateLayout), p.prepared.Nrow()))

	rfm, err := ComputeRFM(p.prepared, analysisDate)
	if err != nil {
		return nil, fmt.Errorf("RFM 计算失败: %w", err)
	}
	scored, fallbacks, err := ScoreRFM(rfm, p.table)
	if err != nil {
		return nil, fmt.Errorf("RFM 打分失败: %w", err)
	}
	if fallbacks.Recency {
		p.logger.Warning("recency 分位数边界重复, 改为按排名分箱")
	}
	if fallbacks.Monetary {
		p.logger.Warning("monetary 分位数边界重复, 改为按排名分箱")
	}
	res.RFM, res.Fallbacks = scored, fallbacks
	res.SegmentSummary = SegmentSummary(scored)

	cltvOpts := CLTVOptions{
		Months:       p.opts.CLTVMonths,
		DiscountRate: p.opts.DiscountRate,
		Purchase:     model.NewBetaGeo(p.opts.BGPenalizer),
		Value:        model.NewGammaGamma(p.opts.GGPenalizer),
	}
	cltv, err := ComputeCLTV(p.prepared, analysisDate, cltvOpts)
	if err != nil {
		return nil, fmt.Errorf("CLTV 计算失败: %w", err)
	}
	p.logger.Debug(fmt.Sprintf("%v; %v", cltvOpts.Purchase, cltvOpts.Value))
	if n := countNonPositive(cltv.Col(ColMonetaryAvg).Float()); n > 0 {
		p.logger.Warning(fmt.Sprintf("%d 个客户消费金额为0, 不参与客单价模型, CLTV 记为0", n))
	}
	res.CLTV = cltv
	res.TierSummary = TierSummary(cltv)
	res.Top = TopByCLTV(cltv, p.opts.TopN)

	targets, err := SelectAllTargets(p.prepared, scored, p.opts.Campaigns)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		p.logger.Info(fmt.Sprintf("活动 %s 目标客户 %d 个", t.Campaign, len(t.IDs)))
	}
	res.Targets = targets
	return res, nil
}

// CalculateMetrics 关键指标, 用于日志与邮件正文
func (p *DataProcessor) CalculateMetrics() (map[string]interface{}, error) {
	if p.result == nil || p.result.RFM.Nrow() == 0 {
		return nil, fmt.Errorf("尚未完成分析")
	}
	res := p.result
	targets := make(map[string]int, len(res.Targets))
	for _, t := range res.Targets {
		targets[t.Campaign] = len(t.IDs)
	}
	return map[string]interface{}{
		"total_customers": res.RFM.Nrow(),
		"excluded":        res.Stats.Excluded,
		"analysis_date":   res.AnalysisDate.Format(utils.DateLayout),
		"segments":        res.SegmentSummary.Nrow(),
		"targets":         targets,
		"last_updated":    time.Now(),
	}, nil
}

func countNonPositive(values []float64) int {
	n := 0
	for _, v := range values {
		if v <= 0 {
			n++
		}
	}
	return n
}
