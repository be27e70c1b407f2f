package linksim

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"github.com/cwsl/chimera/fec"
	"github.com/cwsl/chimera/metrics"
)

// frameSeedStride decorrelates per-frame RNG streams; it is the 64-bit
// golden ratio used by splitmix-style seed sequences.
const frameSeedStride = 0x9e3779b97f4a7c15

// Runner executes batches of frames over a Link with a bounded worker
// pool. Logger and Metrics are optional; leave them nil to run silent and
// uninstrumented.
type Runner struct {
	Link    *Link
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// BatchReport aggregates the outcome of one batch run.
type BatchReport struct {
	RunID  string
	Frames []FrameReport // index-ordered, one per input block; skipped frames have Decoded == nil

	PreFECBER  float64
	PostFECBER float64
	FER        float64

	Converged int
	Exhausted int
	Skipped   int
}

// RunBatch pushes the blocks through the link in parallel. Frame i always
// draws its noise from a RNG seeded by the configured base seed and i, so
// the batch is reproducible regardless of worker count and scheduling.
//
// Per-frame numerical degeneracy skips only that frame; every other error
// aborts the batch.
func (r *Runner) RunBatch(ctx context.Context, blocks [][]uint8) (*BatchReport, error) {
	cfg := r.Link.Config()
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(blocks) {
		workers = len(blocks)
	}

	report := &BatchReport{
		RunID:  uuid.NewString(),
		Frames: make([]FrameReport, len(blocks)),
	}

	if r.Logger != nil {
		r.Logger.Info("starting batch",
			"run_id", report.RunID,
			"frames", len(blocks),
			"workers", workers,
			"es_n0_db", cfg.EsN0Db,
			"modulation_order", cfg.ModulationOrder)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	indices := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				rng := rand.New(rand.NewSource(cfg.Seed + frameSeedStride*uint64(i+1)))
				frame, err := r.Link.Transmit(ctx, blocks[i], rng)
				if err != nil {
					if errors.Is(err, fec.ErrNumericOverflow) {
						// Degenerate numerics poison only this frame.
						if r.Logger != nil {
							r.Logger.Warn("skipping degenerate frame", "frame", i, "err", err)
						}
						r.Metrics.ObserveSkipped()
						mu.Lock()
						report.Frames[i] = FrameReport{Index: i}
						report.Skipped++
						mu.Unlock()
						continue
					}
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				frame.Index = i
				mu.Lock()
				report.Frames[i] = *frame
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range blocks {
		select {
		case indices <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indices)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	r.summarize(report)
	return report, nil
}

// summarize fills in the aggregate rates and pushes them to the optional
// metrics collector.
func (r *Runner) summarize(report *BatchReport) {
	cfg := r.Link.Config()

	var preErrs, postErrs, codeBits, infoBits int
	frames := make([]metrics.FrameResult, 0, len(report.Frames))

	for _, f := range report.Frames {
		if f.Decoded == nil { // skipped
			continue
		}
		preErrs += f.PreFECBitErrors
		postErrs += f.PostFECBitErrors
		codeBits += cfg.N
		infoBits += cfg.K
		frames = append(frames, metrics.FrameResult{
			BitErrors: f.PostFECBitErrors,
			Converged: f.Decoded.Converged,
		})

		outcome := "exhausted"
		if f.Decoded.Converged {
			outcome = "converged"
			report.Converged++
		} else {
			report.Exhausted++
		}
		r.Metrics.ObserveFrame(outcome, f.Decoded.Iterations, f.PreFECBitErrors, f.PostFECBitErrors, cfg.N)
	}

	if codeBits > 0 {
		report.PreFECBER = float64(preErrs) / float64(codeBits)
	}
	if infoBits > 0 {
		report.PostFECBER = float64(postErrs) / float64(infoBits)
	}
	report.FER = metrics.FrameErrorRate(frames)
	r.Metrics.SetBatchRates(report.PreFECBER, report.PostFECBER, report.FER)

	if r.Logger != nil {
		r.Logger.Info("batch complete",
			"run_id", report.RunID,
			"prefec_ber", report.PreFECBER,
			"postfec_ber", report.PostFECBER,
			"fer", report.FER,
			"converged", report.Converged,
			"exhausted", report.Exhausted,
			"skipped", report.Skipped)
	}
}

// RandomBlocks generates count information blocks of k equiprobable bits
// from a seed. This is the trivial bit source of the chain; real payloads
// come from the caller.
func RandomBlocks(count, k int, seed uint64) [][]uint8 {
	rng := rand.New(rand.NewSource(seed))
	blocks := make([][]uint8, count)
	for i := range blocks {
		blocks[i] = make([]uint8, k)
		for j := range blocks[i] {
			blocks[i][j] = uint8(rng.Uint32() & 1)
		}
	}
	return blocks
}
