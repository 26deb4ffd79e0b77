package pricegen

import (
	"math"
	"math/rand/v2"
)

// Rand is the random source consumed by the generator.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// NewSeededRand returns a reproducible source for the given seed.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// minUniform keeps Box-Muller away from log(0).
const minUniform = 1e-300

// standardNormal draws N(0,1) with the Box-Muller transform.
// It always consumes exactly two uniforms.
func standardNormal(r Rand) float64 {
	u1 := r.Float64()
	u2 := r.Float64()
	if u1 < minUniform {
		u1 = minUniform
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
