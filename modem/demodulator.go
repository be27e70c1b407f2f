package modem

import (
	"fmt"
	"math"
)

// Demodulate converts received samples into per-bit log-likelihood ratios,
// log2(M) LLRs per sample. Sign convention: positive means the bit is more
// likely 0, magnitude is confidence. No hard decisions cross this boundary.
//
// noiseVar is the per-dimension Gaussian noise variance at the demodulator
// input. For QPSK the exact LLR collapses to independent scaled-coordinate
// computations, which is taken as a fast path; higher orders go through the
// generic likelihood-ratio sum over the Gray-mapped bit subsets.
func (c *Constellation) Demodulate(samples []complex128, noiseVar float64) ([]float64, error) {
	if !(noiseVar > 0) || math.IsInf(noiseVar, 0) {
		return nil, fmt.Errorf("modem: noise variance %g: %w", noiseVar, ErrInvalidChannelParameter)
	}

	llrs := make([]float64, len(samples)*c.bitsPerSymbol)

	if c.order == 4 {
		// Exact QPSK reduction: LLR_I = 2*A*Re(r)/sigma^2, likewise Q,
		// with A the per-axis amplitude of the unit-energy constellation.
		scale := 2.0 * c.amp / noiseVar
		for i, r := range samples {
			llrs[2*i] = scale * real(r)
			llrs[2*i+1] = scale * imag(r)
		}
		return llrs, nil
	}

	inv2v := 1.0 / (2.0 * noiseVar)
	for i, r := range samples {
		for b := 0; b < c.bitsPerSymbol; b++ {
			num := logSumExpNegDist(r, c.zeroSet[b], inv2v)
			den := logSumExpNegDist(r, c.oneSet[b], inv2v)
			llrs[i*c.bitsPerSymbol+b] = num - den
		}
	}
	return llrs, nil
}

// DemodulateMaxLog is the max-log approximation of Demodulate: the log-sum
// over each bit subset is replaced by its dominant term. Cheaper and within
// a fraction of a dB of exact for the orders supported here.
func (c *Constellation) DemodulateMaxLog(samples []complex128, noiseVar float64) ([]float64, error) {
	if !(noiseVar > 0) || math.IsInf(noiseVar, 0) {
		return nil, fmt.Errorf("modem: noise variance %g: %w", noiseVar, ErrInvalidChannelParameter)
	}

	llrs := make([]float64, len(samples)*c.bitsPerSymbol)
	inv2v := 1.0 / (2.0 * noiseVar)
	for i, r := range samples {
		for b := 0; b < c.bitsPerSymbol; b++ {
			num := maxNegDist(r, c.zeroSet[b], inv2v)
			den := maxNegDist(r, c.oneSet[b], inv2v)
			llrs[i*c.bitsPerSymbol+b] = num - den
		}
	}
	return llrs, nil
}

// logSumExpNegDist computes log sum_s exp(-|r-s|^2 * inv2v) with the usual
// max-shift so the exponentials cannot underflow to zero all at once.
func logSumExpNegDist(r complex128, set []complex128, inv2v float64) float64 {
	maxExp := math.Inf(-1)
	exps := make([]float64, len(set))
	for i, s := range set {
		d := r - s
		e := -(real(d)*real(d) + imag(d)*imag(d)) * inv2v
		exps[i] = e
		if e > maxExp {
			maxExp = e
		}
	}
	var sum float64
	for _, e := range exps {
		sum += math.Exp(e - maxExp)
	}
	return maxExp + math.Log(sum)
}

// maxNegDist returns the largest -|r-s|^2 * inv2v over the subset.
func maxNegDist(r complex128, set []complex128, inv2v float64) float64 {
	best := math.Inf(-1)
	for _, s := range set {
		d := r - s
		e := -(real(d)*real(d) + imag(d)*imag(d)) * inv2v
		if e > best {
			best = e
		}
	}
	return best
}
