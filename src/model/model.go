// Package model 购买次数与客单价的概率模型
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrNotFitted 模型未拟合时调用预测
var ErrNotFitted = errors.New("模型尚未拟合")

// PurchaseModel 预测客户未来购买次数
// frequency 为购买次数, recency 为首末订单间隔, age 为客户年龄, 三者按相同的时间单位
type PurchaseModel interface {
	Fit(frequency, recency, age []float64) error
	Predict(t float64, frequency, recency, age []float64) ([]float64, error)
}

// ValueModel 预测客户平均订单金额
type ValueModel interface {
	Fit(frequency, monetary []float64) error
	ExpectedAverageValue(frequency, monetary []float64) ([]float64, error)
}

// WeeksPerMonth 月与周的换算
const WeeksPerMonth = 4.345

// LifetimeValue 未来 months 个月的折现价值, 时间单位为周
// 每个月的预期购买次数乘以平均金额, 按月折现后累加
func LifetimeValue(p PurchaseModel, avgValue, frequency, recency, age []float64, months int, discountRate float64) ([]float64, error) {
	if len(avgValue) != len(frequency) {
		return nil, fmt.Errorf("平均金额长度 %d 与客户数 %d 不一致", len(avgValue), len(frequency))
	}
	if months < 1 {
		return nil, fmt.Errorf("预测月数必须大于0: %d", months)
	}

	clv := make([]float64, len(frequency))
	prev, err := p.Predict(0, frequency, recency, age)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= months; i++ {
		cur, err := p.Predict(float64(i)*WeeksPerMonth, frequency, recency, age)
		if err != nil {
			return nil, err
		}
		discount := math.Pow(1+discountRate, float64(i))
		for j := range clv {
			clv[j] += avgValue[j] * (cur[j] - prev[j]) / discount
		}
		prev = cur
	}
	return clv, nil
}

func checkLengths(cols ...[]float64) error {
	if len(cols) == 0 || len(cols[0]) == 0 {
		return fmt.Errorf("没有数据")
	}
	for _, c := range cols[1:] {
		if len(c) != len(cols[0]) {
			return fmt.Errorf("输入列长度不一致: %d != %d", len(c), len(cols[0]))
		}
	}
	return nil
}

// minimizeLog 在对数参数空间上做 Nelder-Mead 最小化, 返回指数还原后的参数
func minimizeLog(objective func(params []float64) float64, n int) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(logParams []float64) float64 {
			params := make([]float64, len(logParams))
			for i, lp := range logParams {
				params[i] = math.Exp(lp)
			}
			v := objective(params)
			if math.IsNaN(v) {
				return math.Inf(1)
			}
			return v
		},
	}
	init := make([]float64, n)
	settings := &optimize.Settings{MajorIterations: 5000, FuncEvaluations: 20000}
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if result == nil {
		if err == nil {
			err = fmt.Errorf("优化没有返回结果")
		}
		return nil, err
	}
	params := make([]float64, n)
	for i, lp := range result.X {
		params[i] = math.Exp(lp)
		if math.IsInf(params[i], 0) || math.IsNaN(params[i]) || params[i] == 0 {
			return nil, fmt.Errorf("模型参数不收敛: %v", result.X)
		}
	}
	return params, nil
}

func penalty(coef float64, params []float64) float64 {
	s := 0.0
	for _, p := range params {
		s += p * p
	}
	return coef * s
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}
