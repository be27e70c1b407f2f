package modem

import "fmt"

// Modulate maps a codeword of 0/1 symbols onto constellation points,
// log2(M) bits per symbol, MSB first. The bit count must divide evenly
// into symbols; otherwise ErrUnalignedBlockLength is returned and nothing
// is emitted. Deterministic, no side effects.
func (c *Constellation) Modulate(bits []uint8) ([]complex128, error) {
	bps := c.bitsPerSymbol
	if len(bits)%bps != 0 {
		return nil, fmt.Errorf("modem: %d bits with %d bits/symbol: %w", len(bits), bps, ErrUnalignedBlockLength)
	}

	symbols := make([]complex128, len(bits)/bps)
	for s := range symbols {
		idx := 0
		for b := 0; b < bps; b++ {
			bit := bits[s*bps+b]
			if bit > 1 {
				return nil, fmt.Errorf("modem: non-binary symbol %d at position %d", bit, s*bps+b)
			}
			idx = idx<<1 | int(bit)
		}
		symbols[s] = c.points[idx]
	}
	return symbols, nil
}
