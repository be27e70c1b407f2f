package fec

import (
	"fmt"
	"math/bits"
)

// Encoder is a systematic LDPC encoder. Construction reduces the
// parity-check matrix to the form [A | I] over GF(2) once, by row operations
// only, and caches the reduced A rows as bitsets; every Encode call is then
// a handful of AND/popcount passes. The information bits occupy the first k
// positions of the codeword unchanged.
//
// An Encoder is immutable after construction and safe for concurrent use.
type Encoder struct {
	h *ParityCheckMatrix

	// parityRows[i] holds row i of the reduced matrix restricted to the k
	// information columns: parity bit i is the GF(2) dot product of this
	// row with the information word.
	parityRows [][]uint64
	infoWords  int
}

// NewEncoder derives the systematic generator structure from h. It returns
// ErrSingularMatrix when the last n-k columns of h do not form an invertible
// square, i.e. the code has no systematic encoder in this column order.
func NewEncoder(h *ParityCheckMatrix) (*Encoder, error) {
	n, m, k := h.N(), h.M(), h.K()
	words := (n + 63) / 64

	rows := make([][]uint64, m)
	for c := 0; c < m; c++ {
		rows[c] = make([]uint64, words)
		for _, v := range h.checkVars[c] {
			rows[c][v/64] |= 1 << (uint(v) % 64)
		}
	}

	// Gauss-Jordan on the parity block: bring columns k..n-1 to identity.
	for i := 0; i < m; i++ {
		col := k + i
		pivot := -1
		for r := i; r < m; r++ {
			if rows[r][col/64]>>(uint(col)%64)&1 == 1 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, fmt.Errorf("fec: no pivot for parity column %d: %w", col, ErrSingularMatrix)
		}
		rows[i], rows[pivot] = rows[pivot], rows[i]
		for r := 0; r < m; r++ {
			if r != i && rows[r][col/64]>>(uint(col)%64)&1 == 1 {
				for w := 0; w < words; w++ {
					rows[r][w] ^= rows[i][w]
				}
			}
		}
	}

	infoWords := (k + 63) / 64
	parityRows := make([][]uint64, m)
	for i := 0; i < m; i++ {
		parityRows[i] = make([]uint64, infoWords)
		for j := 0; j < k; j++ {
			if rows[i][j/64]>>(uint(j)%64)&1 == 1 {
				parityRows[i][j/64] |= 1 << (uint(j) % 64)
			}
		}
	}

	return &Encoder{h: h, parityRows: parityRows, infoWords: infoWords}, nil
}

// K returns the information-word length accepted by Encode.
func (e *Encoder) K() int { return e.h.K() }

// N returns the codeword length produced by Encode.
func (e *Encoder) N() int { return e.h.N() }

// Encode maps an information word of exactly k bits (values 0 or 1) to an
// n-bit systematic codeword satisfying every parity check of the code.
// The input is not retained; the returned slice is freshly allocated.
func (e *Encoder) Encode(block []uint8) ([]uint8, error) {
	k, n := e.h.K(), e.h.N()
	if len(block) != k {
		return nil, fmt.Errorf("fec: information word length %d, want %d: %w", len(block), k, ErrShapeMismatch)
	}

	info := make([]uint64, e.infoWords)
	codeword := make([]uint8, n)
	for j, b := range block {
		if b > 1 {
			return nil, fmt.Errorf("fec: non-binary symbol %d at position %d: %w", b, j, ErrShapeMismatch)
		}
		codeword[j] = b
		if b == 1 {
			info[j/64] |= 1 << (uint(j) % 64)
		}
	}

	for i, row := range e.parityRows {
		var acc uint64
		for w := range row {
			acc ^= row[w] & info[w]
		}
		codeword[k+i] = uint8(bits.OnesCount64(acc) & 1)
	}

	return codeword, nil
}
