package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

// 以周为单位的一批客户, 确定性构造
func sampleCustomers(n int) (freq, rec, age, monetary []float64) {
	for i := 0; i < n; i++ {
		T := 20 + float64(i%40)*3.5
		x := float64(1 + i%7 + (i%11)/3)
		r := T * float64(1+i%5) / 6
		freq = append(freq, x)
		rec = append(rec, r)
		age = append(age, T)
		monetary = append(monetary, 80+float64((i*37)%400))
	}
	return
}

func TestBetaGeoPredictUnfitted(t *testing.T) {
	m := NewBetaGeo(0.001)
	_, err := m.Predict(12, []float64{1}, []float64{1}, []float64{2})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestBetaGeoPredict(t *testing.T) {
	m := &BetaGeo{R: 0.25, Alpha: 4.4, A: 2.0, B: 2.4, fitted: true}
	freq := []float64{1, 4, 10}
	rec := []float64{0, 30, 50}
	age := []float64{52, 52, 52}

	zero, err := m.Predict(0, freq, rec, age)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, zero)

	prev := zero
	for _, h := range []float64{4, 12, 24, 52} {
		cur, err := m.Predict(h, freq, rec, age)
		require.NoError(t, err)
		for i := range cur {
			assert.False(t, math.IsNaN(cur[i]))
			assert.Greater(t, cur[i], prev[i], "horizon %v customer %d", h, i)
		}
		prev = cur
	}

	// 购买更频繁且最近仍在购买的客户预期更多
	assert.Greater(t, prev[2], prev[1])
	assert.Greater(t, prev[1], prev[0])

	_, err = m.Predict(4, freq, rec[:2], age)
	assert.Error(t, err)
}

func TestBetaGeoFit(t *testing.T) {
	freq, rec, age, _ := sampleCustomers(300)
	m := NewBetaGeo(0.001)
	require.NoError(t, m.Fit(freq, rec, age))

	for _, p := range []float64{m.R, m.Alpha, m.A, m.B} {
		assert.Greater(t, p, 0.0)
		assert.False(t, math.IsInf(p, 0) || math.IsNaN(p))
	}

	// 拟合结果不劣于初始点
	scale := 10 / 20.0
	for _, T := range age {
		if 10/T < scale {
			scale = 10 / T
		}
	}
	sRec := make([]float64, len(rec))
	sAge := make([]float64, len(age))
	for i := range rec {
		sRec[i], sAge[i] = rec[i]*scale, age[i]*scale
	}
	objective := func(p []float64) float64 {
		return -stat.Mean(betaGeoLogLikelihood(p[0], p[1], p[2], p[3], freq, sRec, sAge), nil) + penalty(m.Penalizer, p)
	}
	fitted := objective([]float64{m.R, m.Alpha * scale, m.A, m.B})
	assert.LessOrEqual(t, fitted, objective([]float64{1, 1, 1, 1})+1e-9)
	assert.Contains(t, m.String(), "BG/NBD")
}

func TestBetaGeoFitRejectsBadInput(t *testing.T) {
	m := NewBetaGeo(0)
	assert.Error(t, m.Fit(nil, nil, nil))
	assert.Error(t, m.Fit([]float64{1}, []float64{5}, []float64{4}))
	assert.Error(t, m.Fit([]float64{1, 2}, []float64{1}, []float64{4, 5}))
}

func TestGammaGammaExpectedAverageValue(t *testing.T) {
	m := &GammaGamma{P: 6.25, Q: 3.74, V: 15.44, fitted: true}
	freq := []float64{1, 5, 200}
	monetary := []float64{100, 100, 100}

	got, err := m.ExpectedAverageValue(freq, monetary)
	require.NoError(t, err)
	for i := range got {
		want := m.P * (m.V + freq[i]*monetary[i]) / (m.P*freq[i] + m.Q - 1)
		assert.InDelta(t, want, got[i], 1e-9)
	}
	// 购买次数越多越接近观测均值
	assert.Less(t, math.Abs(got[2]-100), math.Abs(got[0]-100))

	_, err = (&GammaGamma{}).ExpectedAverageValue(freq, monetary)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestGammaGammaFit(t *testing.T) {
	freq, _, _, monetary := sampleCustomers(300)
	m := NewGammaGamma(0.01)
	require.NoError(t, m.Fit(freq, monetary))
	for _, p := range []float64{m.P, m.Q, m.V} {
		assert.Greater(t, p, 0.0)
		assert.False(t, math.IsInf(p, 0) || math.IsNaN(p))
	}

	objective := func(p []float64) float64 {
		return -stat.Mean(gammaGammaLogLikelihood(p[0], p[1], p[2], freq, monetary), nil) + penalty(m.Penalizer, p)
	}
	assert.LessOrEqual(t, objective([]float64{m.P, m.Q, m.V}), objective([]float64{1, 1, 1})+1e-9)

	assert.Error(t, m.Fit([]float64{1, 2}, []float64{10, 0}))
}

// 每周购买 rate 次的固定模型
type constantRate struct {
	rates []float64
}

func (c constantRate) Fit(_, _, _ []float64) error { return nil }

func (c constantRate) Predict(t float64, frequency, _, _ []float64) ([]float64, error) {
	out := make([]float64, len(frequency))
	for i := range out {
		out[i] = c.rates[i] * t
	}
	return out, nil
}

func TestLifetimeValue(t *testing.T) {
	p := constantRate{rates: []float64{0.5, 0}}
	avg := []float64{200, 1000}
	freq := []float64{3, 1}

	clv, err := LifetimeValue(p, avg, freq, freq, freq, 6, 0.01)
	require.NoError(t, err)

	want := 0.0
	for i := 1; i <= 6; i++ {
		want += 200 * 0.5 * WeeksPerMonth / math.Pow(1.01, float64(i))
	}
	assert.InDelta(t, want, clv[0], 1e-9)
	assert.Equal(t, 0.0, clv[1])

	_, err = LifetimeValue(p, avg[:1], freq, freq, freq, 6, 0.01)
	assert.Error(t, err)
	_, err = LifetimeValue(p, avg, freq, freq, freq, 0, 0.01)
	assert.Error(t, err)
}

func TestLogAddExp(t *testing.T) {
	assert.InDelta(t, math.Log(3), logAddExp(math.Log(1), math.Log(2)), 1e-12)
	assert.Equal(t, 2.0, logAddExp(math.Inf(-1), 2))
	assert.Equal(t, 2.0, logAddExp(2, math.Inf(-1)))
}

func TestHyp2f1(t *testing.T) {
	for _, z := range []float64{-0.6, 0.1, 0.5, 0.9, 0.99} {
		// 2F1(1,1;2;z) = -ln(1-z)/z
		assert.InDelta(t, -math.Log1p(-z)/z, hyp2f1(1, 1, 2, z), 1e-10, "z=%v", z)
		// 2F1(a,b;b;z) = (1-z)^-a
		assert.InDelta(t, math.Pow(1-z, -2.5), hyp2f1(2.5, 3.7, 3.7, z), 1e-9*math.Pow(1-z, -2.5), "z=%v", z)
	}

	// a 为负整数时是多项式
	b, c, z := 1.5, 2.5, 0.3
	want := 1 - 2*b*z/c + b*(b+1)*z*z/(c*(c+1))
	assert.InDelta(t, want, hyp2f1(-2, b, c, z), 1e-12)

	assert.Equal(t, 1.0, hyp2f1(3, 4, 5, 0))
	assert.True(t, math.IsNaN(hyp2f1(1, 1, -2, 0.5)))
	assert.True(t, math.IsNaN(hyp2f1(1, 1, 2, 1)))
}

func TestHyp2f1EulerTransform(t *testing.T) {
	// BG/NBD 中的参数形态: a=r+x, b=b+x, c=a+b+x-1
	a, b, c, z := 3.24, 5.8, 7.6, 0.42
	direct := hyp2f1(a, b, c, z)
	euler := math.Pow(1-z, c-a-b) * hyp2f1(c-a, c-b, c, z)
	assert.InDelta(t, direct, euler, 1e-9*direct)
}
