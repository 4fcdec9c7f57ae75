package datapush

import (
	"fmt"
	"os"
	"path/filepath"

	"CustomerAnalytics/src/processor"
	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

type reportSheet struct {
	name string
	df   dataframe.DataFrame
}

// WriteReport 把分析结果写入xlsx, 每张表一个工作表
func WriteReport(path string, res *processor.Result) error {
	sheets := []reportSheet{
		{"segments", res.SegmentSummary},
		{"cltv_tiers", res.TierSummary},
		{"top_cltv", res.Top},
		{"rfm", res.RFM},
		{"cltv", res.CLTV},
	}
	for _, t := range res.Targets {
		sheets = append(sheets, reportSheet{"target_" + t.Campaign, t.DataFrame()})
	}

	f := excelize.NewFile()
	defer f.Close()

	// 默认工作表改名为第一张表
	if err := f.SetSheetName("Sheet1", sheets[0].name); err != nil {
		return err
	}
	for _, s := range sheets {
		if err := utils.WriteSheet(f, s.name, s.df); err != nil {
			return fmt.Errorf("写入工作表 %s 失败: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存报表 %s 失败: %w", path, err)
	}
	return nil
}
