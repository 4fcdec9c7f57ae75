package datapush

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"CustomerAnalytics/src/processor"
	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// PrintSummary 输出细分汇总, 价值分档汇总, 价值最高的客户与各活动名单人数
func PrintSummary(w io.Writer, res *processor.Result) {
	fmt.Fprintf(w, "分析日期: %s\n", res.AnalysisDate.Format(utils.DateLayout))
	fmt.Fprintf(w, "客户数: %d (剔除 %d)\n\n", res.RFM.Nrow(), res.Stats.Excluded)

	fmt.Fprintln(w, "RFM 细分:")
	printTable(w, res.SegmentSummary)

	fmt.Fprintln(w, "CLTV 分档:")
	printTable(w, res.TierSummary)

	fmt.Fprintf(w, "CLTV 前 %d 名:\n", res.Top.Nrow())
	printTable(w, res.Top.Select([]string{
		processor.ColCustomerID,
		processor.ColFrequency,
		processor.ColMonetaryAvg,
		processor.ColExpSales6Month,
		processor.ColCLTV,
		processor.ColCLTVSegment,
	}))

	for _, t := range res.Targets {
		fmt.Fprintf(w, "活动 %s: %d 个目标客户 -> %s\n", t.Campaign, len(t.IDs), t.OutputFile)
	}
}

// printTable 完整输出所有行(DataFrame.String 只显示前10行)
func printTable(w io.Writer, df dataframe.DataFrame) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range df.Records() {
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	tw.Flush()
	fmt.Fprintln(w)
}
