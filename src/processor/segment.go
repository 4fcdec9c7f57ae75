package processor

import (
	"fmt"
	"strconv"
)

// 客户细分名称
const (
	SegHibernating        = "hibernating"
	SegAtRisk             = "at_risk"
	SegCantLoose          = "cant_loose"
	SegAboutToSleep       = "about_to_sleep"
	SegNeedAttention      = "need_attention"
	SegLoyalCustomers     = "loyal_customers"
	SegPromising          = "promising"
	SegNewCustomers       = "new_customers"
	SegPotentialLoyalists = "potential_loyalists"
	SegChampions          = "champions"
)

// ScoreRange 闭区间 [Min, Max]
type ScoreRange struct {
	Min, Max int
}

func (r ScoreRange) contains(score int) bool {
	return score >= r.Min && score <= r.Max
}

func (r ScoreRange) String() string {
	if r.Min == r.Max {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("[%d-%d]", r.Min, r.Max)
}

// SegmentRule 一条细分规则: recency 分与 frequency 分同时落入区间即命中
type SegmentRule struct {
	Recency   ScoreRange
	Frequency ScoreRange
	Segment   string
}

// Pattern 规则的简写, 如 "[1-2][3-4]"
func (r SegmentRule) Pattern() string {
	return r.Recency.String() + r.Frequency.String()
}

func one(score int) ScoreRange { return ScoreRange{score, score} }

// DefaultSegmentRules 自上而下匹配, 先命中者生效
func DefaultSegmentRules() []SegmentRule {
	return []SegmentRule{
		{ScoreRange{1, 2}, ScoreRange{1, 2}, SegHibernating},
		{ScoreRange{1, 2}, ScoreRange{3, 4}, SegAtRisk},
		{ScoreRange{1, 2}, one(5), SegCantLoose},
		{one(3), ScoreRange{1, 2}, SegAboutToSleep},
		{one(3), one(3), SegNeedAttention},
		{ScoreRange{3, 4}, ScoreRange{4, 5}, SegLoyalCustomers},
		{one(4), one(1), SegPromising},
		{one(5), one(1), SegNewCustomers},
		{ScoreRange{4, 5}, ScoreRange{2, 3}, SegPotentialLoyalists},
		{one(5), ScoreRange{4, 5}, SegChampions},
	}
}

// SegmentTable 有序规则表
type SegmentTable struct {
	rules []SegmentRule
}

// NewSegmentTable 建表时检查 1..5 x 1..5 的所有RF组合都能命中一条规则
func NewSegmentTable(rules []SegmentRule) (*SegmentTable, error) {
	t := &SegmentTable{rules: rules}
	for r := 1; r <= 5; r++ {
		for f := 1; f <= 5; f++ {
			if _, ok := t.Match(r, f); !ok {
				return nil, fmt.Errorf("RF组合 %d%d 没有对应的细分规则", r, f)
			}
		}
	}
	return t, nil
}

// Match 返回第一条命中的细分
func (t *SegmentTable) Match(recencyScore, frequencyScore int) (string, bool) {
	for _, rule := range t.rules {
		if rule.Recency.contains(recencyScore) && rule.Frequency.contains(frequencyScore) {
			return rule.Segment, true
		}
	}
	return "", false
}

// Lookup 按两位RF编码(如 "54")查找细分
func (t *SegmentTable) Lookup(rf string) (string, error) {
	if len(rf) != 2 {
		return "", fmt.Errorf("RF编码 %q 必须是两位数字", rf)
	}
	r, f := int(rf[0]-'0'), int(rf[1]-'0')
	if r < 1 || r > 5 || f < 1 || f > 5 {
		return "", fmt.Errorf("RF编码 %q 超出 1-5 范围", rf)
	}
	seg, ok := t.Match(r, f)
	if !ok {
		return "", fmt.Errorf("RF编码 %q 没有对应的细分", rf)
	}
	return seg, nil
}

// Rules 返回规则副本
func (t *SegmentTable) Rules() []SegmentRule {
	out := make([]SegmentRule, len(t.rules))
	copy(out, t.rules)
	return out
}
