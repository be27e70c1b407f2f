// Package linksim wires the complete baseband signal chain together:
// LDPC encode, constellation mapping, AWGN channel, soft demodulation and
// iterative decoding, with batch and sweep runners on top. It is the
// in-process boundary consumed by whatever harness launches simulations;
// there is no CLI, network or storage surface here.
package linksim

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/cwsl/chimera/channel"
	"github.com/cwsl/chimera/fec"
	"github.com/cwsl/chimera/metrics"
	"github.com/cwsl/chimera/modem"
)

// Link is one configured signal chain. All members are read-only after
// NewLink, so a single Link serves any number of concurrent frame
// traversals; per-frame mutable state (noise RNG, decoder messages) is
// owned by the individual Transmit call.
type Link struct {
	cfg Config

	parity  *fec.ParityCheckMatrix
	encoder *fec.Encoder
	decoder *fec.Decoder
	cons    *modem.Constellation
	channel *channel.AWGN

	// Per-dimension noise variance seen by the demodulator after the
	// receiver divides out the known link-loss attenuation.
	rxNoiseVar float64
}

// FrameReport is the outcome of one block traversal through the chain.
// The snapshot fields are only populated in diagnostics mode and are
// read-only once handed out.
type FrameReport struct {
	Index   int
	Decoded *fec.DecodedBlock

	PreFECBitErrors  int // hard-decision errors over the n codeword bits
	PostFECBitErrors int // residual errors over the k information bits

	// Diagnostics-mode snapshots.
	Codeword       []uint8
	ChannelSamples []complex128
	LLRs           []float64
}

// NewLink builds every stage from the configuration, failing fast on any
// configuration error rather than trusting the caller.
func NewLink(cfg Config) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parity, err := cfg.buildParity()
	if err != nil {
		return nil, err
	}
	if parity.N() != cfg.N || parity.K() != cfg.K {
		return nil, fmt.Errorf("linksim: parity matrix is (%d,%d), config wants (%d,%d)",
			parity.N(), parity.K(), cfg.N, cfg.K)
	}

	encoder, err := fec.NewEncoder(parity)
	if err != nil {
		return nil, err
	}

	cons, err := modem.NewConstellation(cfg.ModulationOrder)
	if err != nil {
		return nil, err
	}

	ch, err := channel.NewAWGN(cfg.LinkLossDb, cfg.EsN0Db)
	if err != nil {
		return nil, err
	}

	g := ch.Attenuation()
	return &Link{
		cfg:        cfg,
		parity:     parity,
		encoder:    encoder,
		decoder:    fec.NewDecoder(parity, fec.Algorithm(cfg.Algorithm)),
		cons:       cons,
		channel:    ch,
		rxNoiseVar: ch.NoiseVariance() / (g * g),
	}, nil
}

// Config returns the run configuration the link was built from.
func (l *Link) Config() Config { return l.cfg }

// Parity returns the shared read-only parity-check matrix.
func (l *Link) Parity() *fec.ParityCheckMatrix { return l.parity }

// Transmit pushes one information block through the full chain using the
// caller's RNG for channel noise. The block is not retained and the report
// shares no buffers with it.
func (l *Link) Transmit(ctx context.Context, block []uint8, rng *rand.Rand) (*FrameReport, error) {
	codeword, err := l.encoder.Encode(block)
	if err != nil {
		return nil, err
	}

	symbols, err := l.cons.Modulate(codeword)
	if err != nil {
		return nil, err
	}

	received := l.channel.Apply(symbols, rng)

	// The receiver knows the deterministic link loss and divides it out,
	// so demodulation happens against the unit-energy constellation with
	// the correspondingly scaled noise variance.
	if g := l.channel.Attenuation(); g != 1 {
		for i := range received {
			received[i] /= complex(g, 0)
		}
	}

	llrs, err := l.cons.Demodulate(received, l.rxNoiseVar)
	if err != nil {
		return nil, err
	}

	decoded, err := l.decoder.Decode(ctx, llrs, l.cfg.MaxIterations)
	if err != nil {
		return nil, err
	}

	report := &FrameReport{Decoded: decoded}

	// Pre-FEC reference: hard decisions straight off the LLR signs.
	hard := make([]uint8, len(llrs))
	for i, llr := range llrs {
		if llr < 0 {
			hard[i] = 1
		}
	}
	if report.PreFECBitErrors, err = metrics.BitErrors(hard, codeword); err != nil {
		return nil, err
	}
	if report.PostFECBitErrors, err = metrics.BitErrors(decoded.Info, block); err != nil {
		return nil, err
	}

	if l.cfg.Diagnostics {
		report.Codeword = codeword
		report.ChannelSamples = received
		report.LLRs = llrs
	}
	return report, nil
}
