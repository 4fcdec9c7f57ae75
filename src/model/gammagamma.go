package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// GammaGamma 客单价模型
// 单次金额 ~ Gamma(p, ν), ν ~ Gamma(q, γ); 假设金额与购买次数无关
type GammaGamma struct {
	Penalizer float64

	P, Q, V float64
	fitted  bool
}

func NewGammaGamma(penalizer float64) *GammaGamma {
	return &GammaGamma{Penalizer: penalizer}
}

// Fit 仅接受购买次数与平均金额都为正的客户
func (m *GammaGamma) Fit(frequency, monetary []float64) error {
	if err := checkLengths(frequency, monetary); err != nil {
		return err
	}
	for i := range frequency {
		if frequency[i] <= 0 || monetary[i] <= 0 {
			return fmt.Errorf("第 %d 个客户 frequency=%v monetary=%v, 必须都大于0", i+1, frequency[i], monetary[i])
		}
	}

	params, err := minimizeLog(func(p []float64) float64 {
		ll := gammaGammaLogLikelihood(p[0], p[1], p[2], frequency, monetary)
		return -stat.Mean(ll, nil) + penalty(m.Penalizer, p)
	}, 3)
	if err != nil {
		return fmt.Errorf("Gamma-Gamma 拟合失败: %w", err)
	}
	m.P, m.Q, m.V = params[0], params[1], params[2]
	m.fitted = true
	return nil
}

func gammaGammaLogLikelihood(p, q, v float64, x, mv []float64) []float64 {
	ll := make([]float64, len(x))
	for i := range x {
		px := p * x[i]
		ll[i] = lgamma(px+q) - lgamma(px) - lgamma(q) +
			q*math.Log(v) + (px-1)*math.Log(mv[i]) + px*math.Log(x[i]) -
			(px+q)*math.Log(x[i]*mv[i]+v)
	}
	return ll
}

// ExpectedAverageValue 给定历史的条件期望客单价
func (m *GammaGamma) ExpectedAverageValue(frequency, monetary []float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkLengths(frequency, monetary); err != nil {
		return nil, err
	}
	out := make([]float64, len(frequency))
	for i := range frequency {
		out[i] = m.P * (m.V + frequency[i]*monetary[i]) / (m.P*frequency[i] + m.Q - 1)
	}
	return out, nil
}

func (m *GammaGamma) String() string {
	return fmt.Sprintf("Gamma-Gamma(p=%.4f, q=%.4f, v=%.4f)", m.P, m.Q, m.V)
}
