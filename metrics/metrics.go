// Package metrics computes link-quality statistics: bit and frame error
// rates and processing gain. Everything here is a pure function over
// decoded results; nothing in the signal chain depends on this package.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch is returned when paired bit sequences have different
// lengths.
var ErrShapeMismatch = errors.New("metrics: sequence lengths differ")

// BitErrors counts positions where a and b disagree.
func BitErrors(a, b []uint8) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("metrics: %d vs %d bits: %w", len(a), len(b), ErrShapeMismatch)
	}
	n := 0
	for i := range a {
		if a[i]&1 != b[i]&1 {
			n++
		}
	}
	return n, nil
}

// BitErrorRate is the fraction of positions where a and b disagree.
func BitErrorRate(a, b []uint8) (float64, error) {
	if len(a) == 0 {
		return 0, fmt.Errorf("metrics: empty sequences: %w", ErrShapeMismatch)
	}
	n, err := BitErrors(a, b)
	if err != nil {
		return 0, err
	}
	return float64(n) / float64(len(a)), nil
}

// FrameResult summarizes one decoded frame for aggregation.
type FrameResult struct {
	BitErrors int  // post-FEC bit errors against the transmitted block
	Converged bool // decoder satisfied all parity checks
}

// FrameErrorRate is the fraction of frames with at least one residual bit
// error. An unconverged frame that nevertheless matched the transmitted
// bits does not count as a frame error; the convergence flag is reported
// separately by the batch runner.
func FrameErrorRate(frames []FrameResult) float64 {
	if len(frames) == 0 {
		return 0
	}
	bad := 0
	for _, f := range frames {
		if f.BitErrors > 0 {
			bad++
		}
	}
	return float64(bad) / float64(len(frames))
}

// ProcessingGainDb is the classic spread-spectrum figure 10*log10(chipRate /
// symbolRate). It is a derived, reported statistic only: it is never folded
// into the channel's Es/N0, which would double-count the gain.
func ProcessingGainDb(symbolRate, chipRate float64) (float64, error) {
	if !(symbolRate > 0) || !(chipRate > 0) {
		return 0, fmt.Errorf("metrics: rates must be positive, got symbol=%g chip=%g", symbolRate, chipRate)
	}
	g := 10 * math.Log10(chipRate/symbolRate)
	if math.IsInf(g, 0) || math.IsNaN(g) {
		return 0, fmt.Errorf("metrics: non-finite processing gain from symbol=%g chip=%g", symbolRate, chipRate)
	}
	return g, nil
}

// Summary holds the first two moments of a set of per-trial measurements.
type Summary struct {
	Mean   float64
	StdDev float64
	Count  int
}

// Summarize reduces per-trial BER (or any other) samples to mean and
// standard deviation.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(samples, nil)
	if math.IsNaN(std) { // single sample
		std = 0
	}
	return Summary{Mean: mean, StdDev: std, Count: len(samples)}
}
