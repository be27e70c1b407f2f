// Package channel models the transmission medium of the simulated link: a
// deterministic link-loss attenuation followed by additive white Gaussian
// noise at a configured Es/N0.
//
// Randomness is an explicit, injected dependency. Every noise-drawing call
// takes a caller-owned *rand.Rand, so two runs with the same seed produce
// bit-identical noise sequences. There is no package-level RNG state.
package channel

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidChannelParameter is returned when the configured link loss or
// Es/N0 produces a non-finite amplitude scale or noise variance. Failing
// here is deliberate: letting a NaN sample through would silently poison
// the whole decoder message-passing graph downstream.
var ErrInvalidChannelParameter = errors.New("channel: invalid channel parameter")

// AWGN applies link-loss scaling and complex additive white Gaussian noise
// to unit-energy symbols. Immutable after construction; Apply is safe to
// call concurrently as long as each caller brings its own RNG.
type AWGN struct {
	linkLossDb float64
	esN0Db     float64

	attenuation float64 // amplitude scale 10^(-linkLossDb/20)
	noiseSigma  float64 // per-dimension noise standard deviation at the channel output
}

// NewAWGN builds a channel for the given link loss and symbol-energy to
// noise-density ratio, both in dB. The per-dimension noise variance is
// derived from the attenuated symbol energy:
//
//	sigma^2 = Es * 10^(-linkLossDb/10) / (2 * 10^(esN0Db/10))
//
// with Es = 1 for the unit-energy constellations used by the modulator.
// Parameters yielding a non-finite scale or variance are rejected with
// ErrInvalidChannelParameter.
func NewAWGN(linkLossDb, esN0Db float64) (*AWGN, error) {
	attenuation := math.Pow(10, -linkLossDb/20)
	esN0 := math.Pow(10, esN0Db/10)
	variance := attenuation * attenuation / (2 * esN0)

	if !finitePositive(attenuation) {
		return nil, fmt.Errorf("channel: link loss %g dB gives amplitude scale %g: %w",
			linkLossDb, attenuation, ErrInvalidChannelParameter)
	}
	if !finitePositive(variance) {
		return nil, fmt.Errorf("channel: Es/N0 %g dB gives noise variance %g: %w",
			esN0Db, variance, ErrInvalidChannelParameter)
	}

	return &AWGN{
		linkLossDb:  linkLossDb,
		esN0Db:      esN0Db,
		attenuation: attenuation,
		noiseSigma:  math.Sqrt(variance),
	}, nil
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// Apply scales each symbol by the link-loss attenuation and perturbs I and
// Q with independent zero-mean Gaussian noise drawn from rng. The input
// slice is not modified.
func (ch *AWGN) Apply(symbols []complex128, rng *rand.Rand) []complex128 {
	normal := distuv.Normal{Mu: 0, Sigma: ch.noiseSigma, Src: rng}

	out := make([]complex128, len(symbols))
	for i, s := range symbols {
		out[i] = complex(
			real(s)*ch.attenuation+normal.Rand(),
			imag(s)*ch.attenuation+normal.Rand(),
		)
	}
	return out
}

// Attenuation returns the amplitude scale applied to every symbol. A
// receiver that gain-corrects by this factor sees the unit-energy
// constellation plus noise of variance NoiseVariance()/Attenuation()^2.
func (ch *AWGN) Attenuation() float64 { return ch.attenuation }

// NoiseVariance returns the per-dimension noise variance at the channel
// output.
func (ch *AWGN) NoiseVariance() float64 { return ch.noiseSigma * ch.noiseSigma }

// EsN0Db returns the configured symbol-energy to noise-density ratio.
func (ch *AWGN) EsN0Db() float64 { return ch.esN0Db }

// LinkLossDb returns the configured link loss.
func (ch *AWGN) LinkLossDb() float64 { return ch.linkLossDb }
