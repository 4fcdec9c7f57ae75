package processor

import (
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 汇总表的列
const (
	ColCount         = "count"
	ColRecencyMean   = "recency_mean"
	ColFrequencyMean = "frequency_mean"
	ColMonetaryMean  = "monetary_mean"
	ColCLTVMean      = "cltv_mean"
	ColCLTVSum       = "cltv_sum"
)

// groupBy 按 key 列的每个取值筛选子表, keys 决定输出顺序
func groupBy(df dataframe.DataFrame, key string, keys []string, fn func(group dataframe.DataFrame)) {
	for _, k := range keys {
		group := df.Filter(dataframe.F{Colname: key, Comparator: series.Eq, Comparando: k})
		if group.Err != nil || group.Nrow() == 0 {
			continue
		}
		fn(group)
	}
}

func distinctSorted(df dataframe.DataFrame, col string) []string {
	set := map[string]bool{}
	for _, v := range df.Col(col).Records() {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SegmentSummary 每个细分的客户数与 recency/frequency/monetary 均值, 按细分名排序
func SegmentSummary(scored dataframe.DataFrame) dataframe.DataFrame {
	var (
		names                   []string
		counts                  []int
		recency, freq, monetary []float64
	)
	groupBy(scored, ColSegment, distinctSorted(scored, ColSegment), func(g dataframe.DataFrame) {
		names = append(names, g.Col(ColSegment).Elem(0).String())
		counts = append(counts, g.Nrow())
		recency = append(recency, stat.Mean(g.Col(ColRecency).Float(), nil))
		freq = append(freq, stat.Mean(g.Col(ColFrequency).Float(), nil))
		monetary = append(monetary, stat.Mean(g.Col(ColMonetary).Float(), nil))
	})
	return dataframe.New(
		series.New(names, series.String, ColSegment),
		series.New(counts, series.Int, ColCount),
		series.New(recency, series.Float, ColRecencyMean),
		series.New(freq, series.Float, ColFrequencyMean),
		series.New(monetary, series.Float, ColMonetaryMean),
	)
}

// TierSummary 每个价值档位的客户数, CLTV 均值与合计, 按 D C B A 排序
func TierSummary(cltv dataframe.DataFrame) dataframe.DataFrame {
	var (
		names       []string
		counts      []int
		means, sums []float64
	)
	groupBy(cltv, ColCLTVSegment, TierLabels, func(g dataframe.DataFrame) {
		values := g.Col(ColCLTV).Float()
		names = append(names, g.Col(ColCLTVSegment).Elem(0).String())
		counts = append(counts, g.Nrow())
		means = append(means, stat.Mean(values, nil))
		sums = append(sums, floats.Sum(values))
	})
	return dataframe.New(
		series.New(names, series.String, ColCLTVSegment),
		series.New(counts, series.Int, ColCount),
		series.New(means, series.Float, ColCLTVMean),
		series.New(sums, series.Float, ColCLTVSum),
	)
}

// TopByCLTV 价值最高的 n 个客户, 价值相同时保持原顺序
func TopByCLTV(cltv dataframe.DataFrame, n int) dataframe.DataFrame {
	values := cltv.Col(ColCLTV).Float()
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	if n >= 0 && n < len(idx) {
		idx = idx[:n]
	}
	return cltv.Subset(idx)
}
