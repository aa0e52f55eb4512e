// Package sampling provides the random variate generators used by the
// policy engine: standard normal draws via Box-Muller, Gamma draws via
// Marsaglia-Tsang, and Beta draws as a ratio of Gammas.
//
// All functions are pure with respect to everything except the supplied
// *rand.Rand, so callers can seed deterministically in tests.
package sampling

import (
	"math"
	"math/rand"
)

// StandardNormal returns a draw from N(0,1) using the Box-Muller transform.
// A zero uniform draw is resampled since ln(0) is undefined.
func StandardNormal(rng *rand.Rand) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	v := rng.Float64()
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// Gamma returns a draw from Gamma(shape, 1) using the Marsaglia-Tsang
// squeeze method. Shapes below 1 are boosted to shape+1 and corrected by
// a uniform power, per the standard identity.
func Gamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return Gamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := StandardNormal(rng)
		for 1+c*x <= 0 {
			x = StandardNormal(rng)
		}
		v := (1 + c*x) * (1 + c*x) * (1 + c*x)
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta returns a draw from Beta(alpha, beta) as Ga/(Ga+Gb) with
// independent Gamma draws.
func Beta(rng *rand.Rand, alpha, beta float64) float64 {
	ga := Gamma(rng, alpha)
	gb := Gamma(rng, beta)
	return ga / (ga + gb)
}
