package fec

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHamming84Dimensions(t *testing.T) {
	h := Hamming84()
	assert.Equal(t, 8, h.N())
	assert.Equal(t, 4, h.M())
	assert.Equal(t, 4, h.K())
	assert.Equal(t, 16, h.Edges()) // four weight-4 checks
}

func TestNewParityCheckMatrixRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		n      int
		checks [][]int
	}{
		{"variable out of range", 4, [][]int{{0, 4}, {1, 2}}},
		{"duplicate variable in check", 4, [][]int{{0, 0}, {1, 2, 3}}},
		{"empty check", 4, [][]int{{}, {0, 1, 2, 3}}},
		{"unchecked variable", 4, [][]int{{0, 1}, {0, 1}}},
		{"m >= n", 2, [][]int{{0}, {1}, {0, 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParityCheckMatrix(tc.n, tc.checks)
			assert.Error(t, err)
		})
	}
}

func TestEncodeParityInvariant(t *testing.T) {
	h := Hamming84()
	enc, err := NewEncoder(h)
	require.NoError(t, err)

	// Every one of the 16 information words must produce a codeword that
	// satisfies all parity checks and carries the word as its prefix.
	for u := 0; u < 16; u++ {
		block := []uint8{uint8(u >> 3 & 1), uint8(u >> 2 & 1), uint8(u >> 1 & 1), uint8(u & 1)}
		cw, err := enc.Encode(block)
		require.NoError(t, err)
		require.Len(t, cw, 8)
		assert.Equal(t, block, cw[:4])

		violated, err := h.CheckSyndrome(cw)
		require.NoError(t, err)
		assert.Zero(t, violated, "codeword for %v violates parity", block)
	}
}

func TestEncodeShapeMismatch(t *testing.T) {
	enc, err := NewEncoder(Hamming84())
	require.NoError(t, err)

	_, err = enc.Encode([]uint8{1, 0, 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = enc.Encode([]uint8{1, 0, 1, 1, 0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = enc.Encode([]uint8{1, 0, 2, 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNewEncoderSingularMatrix(t *testing.T) {
	// Last two columns are identical, so the parity block is singular.
	h, err := ParityCheckFromDense([][]uint8{
		{1, 0, 1, 1},
		{0, 1, 1, 1},
	})
	require.NoError(t, err)

	_, err = NewEncoder(h)
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

func TestDecodeCleanLLRs(t *testing.T) {
	h := Hamming84()
	enc, err := NewEncoder(h)
	require.NoError(t, err)
	dec := NewDecoder(h, SumProduct)

	block := []uint8{1, 0, 1, 1}
	cw, err := enc.Encode(block)
	require.NoError(t, err)

	// Strong clean LLRs: positive for 0, negative for 1.
	llrs := make([]float64, len(cw))
	for i, b := range cw {
		if b == 0 {
			llrs[i] = 12.0
		} else {
			llrs[i] = -12.0
		}
	}

	out, err := dec.Decode(context.Background(), llrs, 50)
	require.NoError(t, err)
	assert.True(t, out.Converged)
	assert.Zero(t, out.Iterations, "clean input should converge before any message passing")
	assert.Equal(t, cw, out.Bits)
	assert.Equal(t, block, out.Info)
}

func TestDecodeCorrectsSingleError(t *testing.T) {
	h := Hamming84()
	enc, err := NewEncoder(h)
	require.NoError(t, err)

	for _, alg := range []Algorithm{SumProduct, MinSum} {
		t.Run(alg.String(), func(t *testing.T) {
			dec := NewDecoder(h, alg)
			block := []uint8{1, 1, 0, 1}
			cw, err := enc.Encode(block)
			require.NoError(t, err)

			// Flip one bit with weak wrong confidence against seven
			// strong correct LLRs.
			for flip := 0; flip < len(cw); flip++ {
				llrs := make([]float64, len(cw))
				for i, b := range cw {
					mag := 8.0
					if i == flip {
						mag = -1.5 // wrong sign, low confidence
					}
					if b == 0 {
						llrs[i] = mag
					} else {
						llrs[i] = -mag
					}
				}

				out, err := dec.Decode(context.Background(), llrs, 50)
				require.NoError(t, err)
				assert.True(t, out.Converged, "flip at %d did not converge", flip)
				assert.LessOrEqual(t, out.Iterations, 5)
				assert.Equal(t, block, out.Info, "flip at %d decoded wrong", flip)
			}
		})
	}
}

func TestDecodeCorrectsSingleErrorAtHighConfidence(t *testing.T) {
	h := Hamming84()
	enc, err := NewEncoder(h)
	require.NoError(t, err)

	block := []uint8{1, 0, 1, 1}
	cw, err := enc.Encode(block)
	require.NoError(t, err)

	// Saturated channel confidence must not freeze the decoder: the
	// extrinsic messages still have to outvote one confidently wrong
	// channel term, however large the magnitudes get.
	for _, alg := range []Algorithm{SumProduct, MinSum} {
		t.Run(alg.String(), func(t *testing.T) {
			dec := NewDecoder(h, alg)
			for _, mag := range []float64{10, 50, 1e3, 1e6} {
				for flip := 0; flip < len(cw); flip++ {
					llrs := make([]float64, len(cw))
					for i, b := range cw {
						m := mag
						if b == 1 {
							m = -m
						}
						if i == flip {
							m = -m
						}
						llrs[i] = m
					}

					out, err := dec.Decode(context.Background(), llrs, 50)
					require.NoError(t, err, "mag %g flip %d", mag, flip)
					assert.True(t, out.Converged, "mag %g flip %d did not converge", mag, flip)
					assert.LessOrEqual(t, out.Iterations, 10, "mag %g flip %d", mag, flip)
					assert.Equal(t, block, out.Info, "mag %g flip %d decoded wrong", mag, flip)
				}
			}
		})
	}
}

func TestDecodeDegreeOneCheckStaysFinite(t *testing.T) {
	// Two degree-one checks pinning the same variable: their messages have
	// no extrinsic input and must stay bounded rather than overflowing the
	// posterior sum.
	h, err := NewParityCheckMatrix(4, [][]int{{0, 1, 2, 3}, {3}, {3}})
	require.NoError(t, err)

	for _, alg := range []Algorithm{SumProduct, MinSum} {
		t.Run(alg.String(), func(t *testing.T) {
			dec := NewDecoder(h, alg)
			out, err := dec.Decode(context.Background(), []float64{8, 8, 8, -8}, 50)
			require.NoError(t, err)
			assert.True(t, out.Converged)
			assert.Equal(t, []uint8{0, 0, 0, 0}, out.Bits)
		})
	}
}

func TestDecodedBlockInfoIsIndependent(t *testing.T) {
	dec := NewDecoder(Hamming84(), MinSum)

	// Clean LLRs for the codeword of [1,0,1,1].
	llrs := []float64{-9, 9, -9, -9, 9, -9, 9, 9}
	out, err := dec.Decode(context.Background(), llrs, 50)
	require.NoError(t, err)
	require.Equal(t, []uint8{1, 0, 1, 1}, out.Info)

	out.Bits[0] ^= 1
	assert.Equal(t, []uint8{1, 0, 1, 1}, out.Info, "Info must not share storage with Bits")
}

func TestDecodeExhaustedIsNotAnError(t *testing.T) {
	h := Hamming84()
	dec := NewDecoder(h, SumProduct)

	// All-erasure LLRs tilted into an inconsistent pattern: decoder must
	// terminate cleanly with Converged=false and a full-shape result.
	llrs := []float64{0.1, -0.1, 0.1, -0.1, 0.1, -0.1, 0.1, 0.1}
	out, err := dec.Decode(context.Background(), llrs, 3)
	require.NoError(t, err)
	require.Len(t, out.Bits, 8)
	require.Len(t, out.Info, 4)
	if !out.Converged {
		assert.Positive(t, out.Violated)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	dec := NewDecoder(Hamming84(), SumProduct)
	ctx := context.Background()

	_, err := dec.Decode(ctx, make([]float64, 7), 50)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	bad := make([]float64, 8)
	bad[3] = math.NaN()
	_, err = dec.Decode(ctx, bad, 50)
	assert.ErrorIs(t, err, ErrNumericOverflow)

	_, err = dec.Decode(ctx, make([]float64, 8), 0)
	assert.Error(t, err)
}

func TestDecodeAbortsBetweenIterations(t *testing.T) {
	h := Hamming84()
	dec := NewDecoder(h, SumProduct)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unsatisfiable low-confidence input so the decoder would iterate.
	llrs := []float64{0.1, -0.1, 0.1, -0.1, 0.1, -0.1, 0.1, 0.1}
	_, err := dec.Decode(ctx, llrs, 50)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGallagerIsDeterministicAndEncodable(t *testing.T) {
	h1, err := Gallager(96, 48, 3, 42)
	require.NoError(t, err)
	h2, err := Gallager(96, 48, 3, 42)
	require.NoError(t, err)

	assert.Equal(t, h1.Edges(), h2.Edges())
	assert.Equal(t, h1.checkVars, h2.checkVars)

	enc, err := NewEncoder(h1)
	require.NoError(t, err)

	block := make([]uint8, 48)
	for i := range block {
		block[i] = uint8(i % 2)
	}
	cw, err := enc.Encode(block)
	require.NoError(t, err)
	violated, err := h1.CheckSyndrome(cw)
	require.NoError(t, err)
	assert.Zero(t, violated)
}

func TestIdempotentConstruction(t *testing.T) {
	h := Hamming84()
	encA, err := NewEncoder(h)
	require.NoError(t, err)
	encB, err := NewEncoder(h)
	require.NoError(t, err)

	block := []uint8{0, 1, 1, 0}
	cwA, err := encA.Encode(block)
	require.NoError(t, err)
	cwB, err := encB.Encode(block)
	require.NoError(t, err)
	assert.Equal(t, cwA, cwB)
}

func TestRoundTripProperty(t *testing.T) {
	h, err := Gallager(64, 32, 3, 7)
	require.NoError(t, err)
	enc, err := NewEncoder(h)
	require.NoError(t, err)
	dec := NewDecoder(h, MinSum)

	rapid.Check(t, func(t *rapid.T) {
		block := make([]uint8, enc.K())
		for i := range block {
			block[i] = uint8(rapid.IntRange(0, 1).Draw(t, "bit"))
		}

		cw, err := enc.Encode(block)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		llrs := make([]float64, len(cw))
		for i, b := range cw {
			if b == 0 {
				llrs[i] = 10.0
			} else {
				llrs[i] = -10.0
			}
		}

		out, err := dec.Decode(context.Background(), llrs, 50)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !out.Converged {
			t.Fatalf("clean decode did not converge")
		}
		for i := range block {
			if out.Info[i] != block[i] {
				t.Fatalf("bit %d: got %d want %d", i, out.Info[i], block[i])
			}
		}
	})
}
