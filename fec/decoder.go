package fec

import (
	"context"
	"fmt"
	"math"
)

// Algorithm selects the check-node update rule used by the decoder.
type Algorithm int

const (
	// SumProduct is exact belief propagation using the tanh-domain
	// product rule.
	SumProduct Algorithm = iota
	// MinSum is the normalized min-sum approximation. It trades a small
	// amount of coding gain for much cheaper check-node updates and is
	// the recommended choice for long codes.
	MinSum
)

// minSumScale is the normalization factor applied to min-sum check
// messages. 0.75 recovers most of the gap to sum-product for the column
// weights used here.
const minSumScale = 0.75

// llrClamp bounds the channel LLRs fed into message passing. LLR
// magnitudes grow like 1/sigma^2 and are numerically certain long before
// this point; clipping keeps the tanh-domain terms away from exact ±1 in
// float64 so extrinsic messages can still outgrow a wrong channel term.
const llrClamp = 20.0

// maxCheckProduct keeps the tanh-domain product strictly inside (-1, 1)
// so its atanh stays finite and the check message keeps tracking the
// weakest incoming belief.
const maxCheckProduct = 1 - 1e-12

// maxCheckMessage is 2*atanh(maxCheckProduct), the resulting cap on a
// single check-to-variable message. Min-sum messages are clamped to the
// same cap; a degree-one check has no extrinsic input and would otherwise
// emit an unbounded magnitude.
const maxCheckMessage = 28.3

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case SumProduct:
		return "sum-product"
	case MinSum:
		return "min-sum"
	default:
		return "unknown"
	}
}

// AlgorithmFromString converts a string to an Algorithm.
func AlgorithmFromString(s string) (Algorithm, error) {
	switch s {
	case "sum-product", "sumproduct", "bp":
		return SumProduct, nil
	case "min-sum", "minsum":
		return MinSum, nil
	default:
		return 0, fmt.Errorf("fec: unknown decoder algorithm: %s", s)
	}
}

// DecodedBlock is the result of one decode invocation. Bits always has the
// codeword length of the code and Info is a copy of its systematic prefix,
// whether or not the decoder converged; the two share no storage.
// Converged=false is an ordinary outcome at low SNR, not a failure: callers
// building BER/FER curves need to count it.
type DecodedBlock struct {
	Bits       []uint8 // hard-decision codeword estimate, length n
	Info       []uint8 // copy of the systematic prefix, length k
	Converged  bool    // all parity checks satisfied
	Iterations int     // message-passing iterations consumed
	Violated   int     // parity checks still violated on exit (0 when converged)
}

// Decoder runs iterative belief propagation over the Tanner graph of a
// parity-check matrix. The decoder itself holds only read-only structure
// and is safe for concurrent use; all mutable per-call state lives in a
// messageState owned by a single Decode invocation.
type Decoder struct {
	h   *ParityCheckMatrix
	alg Algorithm
}

// NewDecoder creates a decoder for the given code and algorithm.
func NewDecoder(h *ParityCheckMatrix, alg Algorithm) *Decoder {
	return &Decoder{h: h, alg: alg}
}

// N returns the LLR vector length expected by Decode.
func (d *Decoder) N() int { return d.h.N() }

// messageState holds the per-edge messages of one decode invocation.
// tov[e] is the variable-to-check message on edge e, toc[e] the
// check-to-variable message. Both are indexed by the flat edge ids of the
// ParityCheckMatrix.
type messageState struct {
	tov  []float64
	toc  []float64
	hard []uint8
	best []uint8
}

func newMessageState(h *ParityCheckMatrix) *messageState {
	return &messageState{
		tov:  make([]float64, h.Edges()),
		toc:  make([]float64, h.Edges()),
		hard: make([]uint8, h.N()),
		best: make([]uint8, h.N()),
	}
}

// Decode runs up to maxIterations of message passing over the graph,
// seeded with channel LLRs. LLR sign convention: positive means the bit is
// more likely 0. Inputs are clipped to ±llrClamp before message passing;
// beyond that magnitude a bit is certain anyway and unclipped values would
// saturate the tanh-domain arithmetic.
//
// The decoder terminates early as soon as the hard decision satisfies every
// parity check; continuing past that point wastes work and can oscillate
// under min-sum. When the iteration budget is exhausted the best estimate
// seen so far is returned with Converged=false. The context is checked at
// iteration boundaries only, so an aborted decode never exposes
// half-updated messages.
func (d *Decoder) Decode(ctx context.Context, llrs []float64, maxIterations int) (*DecodedBlock, error) {
	h := d.h
	if len(llrs) != h.N() {
		return nil, fmt.Errorf("fec: LLR vector length %d, want %d: %w", len(llrs), h.N(), ErrShapeMismatch)
	}
	if maxIterations < 1 {
		return nil, fmt.Errorf("fec: maxIterations %d, want >= 1", maxIterations)
	}
	channel := make([]float64, h.n)
	for i, l := range llrs {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("fec: LLR %g at position %d: %w", l, i, ErrNumericOverflow)
		}
		switch {
		case l > llrClamp:
			channel[i] = llrClamp
		case l < -llrClamp:
			channel[i] = -llrClamp
		default:
			channel[i] = l
		}
	}

	st := newMessageState(h)
	minViolated := h.M() + 1

	for iter := 0; ; iter++ {
		// Posterior per variable: channel LLR plus all incoming check
		// messages. Positive posterior decides 0.
		for v := 0; v < h.n; v++ {
			sum := channel[v]
			for _, e := range h.varEdges[v] {
				sum += st.toc[e]
			}
			if sum < 0 {
				st.hard[v] = 1
			} else {
				st.hard[v] = 0
			}
		}

		violated := 0
		for c := 0; c < h.m; c++ {
			x := uint8(0)
			for _, v := range h.checkVars[c] {
				x ^= st.hard[v]
			}
			if x != 0 {
				violated++
			}
		}
		if violated < minViolated {
			minViolated = violated
			copy(st.best, st.hard)
		}
		if violated == 0 {
			return d.result(st.hard, true, iter, 0), nil
		}
		if iter >= maxIterations {
			// Budget exhausted: hand back the best estimate seen, not
			// necessarily the last one.
			return d.result(st.best, false, maxIterations, minViolated), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fec: decode aborted after %d iterations: %w", iter, err)
		}

		// Variable-to-check: channel LLR plus incoming check messages,
		// excluding the target edge.
		for v := 0; v < h.n; v++ {
			total := channel[v]
			for _, e := range h.varEdges[v] {
				total += st.toc[e]
			}
			for _, e := range h.varEdges[v] {
				st.tov[e] = total - st.toc[e]
			}
		}

		// Check-to-variable update.
		switch d.alg {
		case MinSum:
			d.updateChecksMinSum(st)
		default:
			d.updateChecksSumProduct(st)
		}
	}
}

// updateChecksSumProduct applies the tanh-domain product rule: the message
// to each variable is 2·atanh of the product of tanh(m/2) over the other
// edges of the check. The product is clamped away from ±1 so the atanh
// stays finite when every incoming message is saturated.
func (d *Decoder) updateChecksSumProduct(st *messageState) {
	h := d.h
	for c := 0; c < h.m; c++ {
		edges := h.checkEdges[c]
		deg := len(edges)
		for i := 0; i < deg; i++ {
			prod := 1.0
			for j := 0; j < deg; j++ {
				if j != i {
					prod *= math.Tanh(st.tov[edges[j]] / 2)
				}
			}
			if prod > maxCheckProduct {
				prod = maxCheckProduct
			} else if prod < -maxCheckProduct {
				prod = -maxCheckProduct
			}
			st.toc[edges[i]] = 2 * math.Atanh(prod)
		}
	}
}

// updateChecksMinSum applies the normalized min-sum rule: sign product
// times the minimum magnitude over the other edges, scaled by minSumScale.
func (d *Decoder) updateChecksMinSum(st *messageState) {
	h := d.h
	for c := 0; c < h.m; c++ {
		edges := h.checkEdges[c]

		// One pass for the two smallest magnitudes and the sign product.
		min1, min2 := math.MaxFloat64, math.MaxFloat64
		argmin := -1
		negative := false
		for i, e := range edges {
			m := st.tov[e]
			if m < 0 {
				negative = !negative
				m = -m
			}
			if m < min1 {
				min2 = min1
				min1 = m
				argmin = i
			} else if m < min2 {
				min2 = m
			}
		}

		for i, e := range edges {
			mag := min1
			if i == argmin {
				mag = min2
			}
			if mag > maxCheckMessage {
				mag = maxCheckMessage
			}
			sign := 1.0
			if negative != (st.tov[e] < 0) {
				sign = -1.0
			}
			st.toc[e] = sign * minSumScale * mag
		}
	}
}

func (d *Decoder) result(bits []uint8, converged bool, iterations, violated int) *DecodedBlock {
	out := make([]uint8, d.h.n)
	copy(out, bits)
	info := make([]uint8, d.h.K())
	copy(info, bits)
	return &DecodedBlock{
		Bits:       out,
		Info:       info,
		Converged:  converged,
		Iterations: iterations,
		Violated:   violated,
	}
}
