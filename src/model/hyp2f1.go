package model

import "math"

const (
	hyp2f1MaxTerms = 100000
	hyp2f1Tol      = 1e-15
)

// hyp2f1 高斯超几何函数 2F1(a, b; c; z), 仅 |z| < 1, 按幂级数求和.
// c 为非正整数或级数不收敛时返回 NaN, 溢出时返回 ±Inf
func hyp2f1(a, b, c, z float64) float64 {
	if c <= 0 && c == math.Floor(c) {
		return math.NaN()
	}
	if z == 0 {
		return 1
	}
	if math.Abs(z) >= 1 {
		return math.NaN()
	}

	sum, term := 1.0, 1.0
	for k := 0; k < hyp2f1MaxTerms; k++ {
		fk := float64(k)
		term *= (a + fk) * (b + fk) / ((c + fk) * (fk + 1)) * z
		sum += term
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return sum
		}
		// a 或 b 为非正整数时级数截断为多项式
		if term == 0 {
			return sum
		}
		// 各 Pochhammer 因子转正之后项的比值单调趋于 z, 此时才能判断收敛
		if fk > -a && fk > -b && fk > -c && math.Abs(term) <= hyp2f1Tol*math.Abs(sum) {
			return sum
		}
	}
	return math.NaN()
}
