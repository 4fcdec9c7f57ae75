package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BetaGeo BG/NBD 购买次数模型
// 活跃期内购买服从 Poisson(λ), λ ~ Gamma(r, α);
// 每次购买后以概率 p 流失, p ~ Beta(a, b)
type BetaGeo struct {
	Penalizer float64

	R, Alpha, A, B float64
	fitted         bool
}

func NewBetaGeo(penalizer float64) *BetaGeo {
	return &BetaGeo{Penalizer: penalizer}
}

// Fit 极大似然估计 r, α, a, b
// age 先缩放到最大值为10, 估计完成后 α 再还原
func (m *BetaGeo) Fit(frequency, recency, age []float64) error {
	if err := checkLengths(frequency, recency, age); err != nil {
		return err
	}
	for i := range frequency {
		if frequency[i] < 0 || recency[i] < 0 || recency[i] > age[i] {
			return fmt.Errorf("第 %d 个客户数据不合法: frequency=%v recency=%v age=%v", i+1, frequency[i], recency[i], age[i])
		}
	}
	maxAge := floats.Max(age)
	if maxAge <= 0 {
		return fmt.Errorf("客户年龄全部为0")
	}
	scale := 10 / maxAge
	rec := make([]float64, len(recency))
	floats.ScaleTo(rec, scale, recency)
	T := make([]float64, len(age))
	floats.ScaleTo(T, scale, age)

	params, err := minimizeLog(func(p []float64) float64 {
		ll := betaGeoLogLikelihood(p[0], p[1], p[2], p[3], frequency, rec, T)
		return -stat.Mean(ll, nil) + penalty(m.Penalizer, p)
	}, 4)
	if err != nil {
		return fmt.Errorf("BG/NBD 拟合失败: %w", err)
	}

	m.R, m.Alpha, m.A, m.B = params[0], params[1]/scale, params[2], params[3]
	m.fitted = true
	return nil
}

func betaGeoLogLikelihood(r, alpha, a, b float64, x, tx, T []float64) []float64 {
	ll := make([]float64, len(x))
	for i := range x {
		a1 := lgamma(r+x[i]) - lgamma(r) + r*math.Log(alpha)
		a2 := lgamma(a+b) + lgamma(b+x[i]) - lgamma(b) - lgamma(a+b+x[i])
		a3 := -(r + x[i]) * math.Log(alpha+T[i])
		a4 := math.Inf(-1)
		if x[i] > 0 {
			a4 = math.Log(a) - math.Log(b+x[i]-1) - (r+x[i])*math.Log(alpha+tx[i])
		}
		ll[i] = a1 + a2 + logAddExp(a3, a4)
	}
	return ll
}

// Predict 未来 t 个时间单位内每个客户的预期购买次数
func (m *BetaGeo) Predict(t float64, frequency, recency, age []float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := checkLengths(frequency, recency, age); err != nil {
		return nil, err
	}
	out := make([]float64, len(frequency))
	if t == 0 {
		return out, nil
	}
	r, alpha, a, b := m.R, m.Alpha, m.A, m.B
	for i := range frequency {
		x, tx, T := frequency[i], recency[i], age[i]
		hypA, hypB, hypC := r+x, b+x, a+b+x-1
		z := t / (alpha + T + t)

		lnHyp := math.Log(hyp2f1(hypA, hypB, hypC, z))
		if math.IsInf(lnHyp, 0) || math.IsNaN(lnHyp) {
			// Euler 变换
			lnHyp = math.Log(hyp2f1(hypC-hypA, hypC-hypB, hypC, z)) + (hypC-hypA-hypB)*math.Log(1-z)
		}

		first := (a + b + x - 1) / (a - 1)
		second := 1 - math.Exp(lnHyp+(r+x)*math.Log((alpha+T)/(alpha+t+T)))
		denom := 1.0
		if x > 0 {
			denom += (a / (b + x - 1)) * math.Pow((alpha+T)/(alpha+tx), r+x)
		}
		out[i] = first * second / denom
	}
	return out, nil
}

func (m *BetaGeo) String() string {
	return fmt.Sprintf("BG/NBD(r=%.4f, alpha=%.4f, a=%.4f, b=%.4f)", m.R, m.Alpha, m.A, m.B)
}
