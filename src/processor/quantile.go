package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDuplicateEdges 分箱边界重复(大量相同取值)时返回
var ErrDuplicateEdges = errors.New("分箱边界不唯一")

// Quantile 线性插值分位数, sorted 必须升序
// h = (n-1)p, 与常见统计软件的默认算法一致
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// RankFirst 按取值排名(从1开始), 相同取值按出现顺序排
func RankFirst(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})
	ranks := make([]float64, len(values))
	for pos, i := range idx {
		ranks[i] = float64(pos + 1)
	}
	return ranks
}

// QCut 等频分箱, 返回每个值对应的标签
// 第一个箱两端闭合, 其余左开右闭
func QCut(values []float64, labels []int) ([]int, error) {
	q := len(labels)
	if q == 0 {
		return nil, fmt.Errorf("没有分箱标签")
	}
	if len(values) == 0 {
		return []int{}, nil
	}

	sorted := sortedCopy(values)
	edges := make([]float64, q+1)
	for i := range edges {
		edges[i] = Quantile(sorted, float64(i)/float64(q))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateEdges, edges)
		}
	}

	out := make([]int, len(values))
	for i, v := range values {
		bin := q - 1
		for b := 1; b <= q; b++ {
			if v <= edges[b] {
				bin = b - 1
				break
			}
		}
		out[i] = labels[bin]
	}
	return out, nil
}

// ScoreColumn 把一列指标打成 labels 分
// byRank 为 true 时先按出现顺序排名再分箱;
// 否则按取值分箱, 边界重复时退回排名分箱, fellBack 标记是否发生了退回
func ScoreColumn(values []float64, labels []int, byRank bool) (scores []int, fellBack bool, err error) {
	if len(values) > 0 && len(values) < 2 {
		return nil, false, fmt.Errorf("至少需要2个客户才能分箱")
	}
	if byRank {
		scores, err = QCut(RankFirst(values), labels)
		return scores, false, err
	}
	scores, err = QCut(values, labels)
	if errors.Is(err, ErrDuplicateEdges) {
		scores, err = QCut(RankFirst(values), labels)
		return scores, true, err
	}
	return scores, false, err
}
