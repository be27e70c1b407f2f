package modem

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

var (
	// ErrUnalignedBlockLength is returned when a bit sequence cannot be
	// split into whole symbols. The modulator never pads: silent padding
	// would corrupt downstream error-rate measurements, so any padding
	// policy is the caller's explicit responsibility.
	ErrUnalignedBlockLength = errors.New("modem: bit count not a multiple of bits per symbol")

	// ErrInvalidChannelParameter is returned when the noise variance
	// handed to the demodulator is not a positive finite number.
	ErrInvalidChannelParameter = errors.New("modem: invalid noise variance")
)

// Constellation is a Gray-coded square constellation normalized to unit
// average symbol energy, so a configured Es/N0 parameterizes the channel
// directly without per-call rescaling. Supported orders are 4 (QPSK), 16
// and 64. Immutable after construction and safe for concurrent use.
type Constellation struct {
	order         int
	bitsPerSymbol int
	perAxis       int     // Gray bits per axis
	levels        int     // amplitude levels per axis
	amp           float64 // level spacing after energy normalization

	// points[i] is the symbol for bit pattern i, MSB first. The first
	// half of the bits selects the I level, the second half the Q level.
	points []complex128

	// zeroSet[b] and oneSet[b] partition points by the value of bit b,
	// for the generic per-bit LLR path.
	zeroSet [][]complex128
	oneSet  [][]complex128
}

// NewConstellation builds the Gray-coded constellation of the given order.
func NewConstellation(order int) (*Constellation, error) {
	switch order {
	case 4, 16, 64:
	default:
		return nil, fmt.Errorf("modem: unsupported constellation order %d (want 4, 16 or 64)", order)
	}

	bitsPerSymbol := 0
	for 1<<bitsPerSymbol < order {
		bitsPerSymbol++
	}
	perAxis := bitsPerSymbol / 2
	levels := 1 << perAxis

	// Square M-QAM with per-axis levels ±1, ±3, ... has average symbol
	// energy 2(M-1)/3 at unit spacing; scale to E[|s|^2] = 1.
	amp := 1.0 / math.Sqrt(2.0*float64(order-1)/3.0)

	c := &Constellation{
		order:         order,
		bitsPerSymbol: bitsPerSymbol,
		perAxis:       perAxis,
		levels:        levels,
		amp:           amp,
		points:        make([]complex128, order),
		zeroSet:       make([][]complex128, bitsPerSymbol),
		oneSet:        make([][]complex128, bitsPerSymbol),
	}

	for idx := 0; idx < order; idx++ {
		iBits := idx >> perAxis
		qBits := idx & (levels - 1)
		c.points[idx] = complex(c.axisLevel(iBits), c.axisLevel(qBits))
	}

	for b := 0; b < bitsPerSymbol; b++ {
		for idx, p := range c.points {
			if idx>>(bitsPerSymbol-1-b)&1 == 0 {
				c.zeroSet[b] = append(c.zeroSet[b], p)
			} else {
				c.oneSet[b] = append(c.oneSet[b], p)
			}
		}
	}

	return c, nil
}

// axisLevel maps Gray-coded axis bits to a normalized amplitude. The
// all-zero pattern takes the most positive level, so for QPSK bit 0 lands
// on positive I/Q and the LLR sign convention (positive means bit 0) falls
// out of the geometry.
func (c *Constellation) axisLevel(gray int) float64 {
	b := grayToBinary(gray)
	return c.amp * float64((c.levels-1)-2*b)
}

// grayToBinary decodes a reflected Gray code.
func grayToBinary(g int) int {
	b := g
	for g >>= 1; g != 0; g >>= 1 {
		b ^= g
	}
	return b
}

// Order returns the constellation order M.
func (c *Constellation) Order() int { return c.order }

// BitsPerSymbol returns log2(M).
func (c *Constellation) BitsPerSymbol() int { return c.bitsPerSymbol }

// Points returns a copy of the symbol table indexed by bit pattern.
func (c *Constellation) Points() []complex128 {
	out := make([]complex128, len(c.points))
	copy(out, c.points)
	return out
}

// AverageEnergy returns the mean squared magnitude over the symbol table.
// It is 1 up to floating-point rounding; exposed for verification.
func (c *Constellation) AverageEnergy() float64 {
	var sum float64
	for _, p := range c.points {
		sum += real(p)*real(p) + imag(p)*imag(p)
	}
	return sum / float64(len(c.points))
}

// Nearest returns the bit pattern of the constellation point closest to r.
// Hard-decision helper for diagnostics; the demodulation path proper never
// uses it.
func (c *Constellation) Nearest(r complex128) int {
	best, bestDist := 0, math.Inf(1)
	for idx, p := range c.points {
		d := cmplx.Abs(r - p)
		if d < bestDist {
			best, bestDist = idx, d
		}
	}
	return best
}
