package linksim

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// SweepPoint is the measured link quality at one Es/N0 setting.
type SweepPoint struct {
	EsN0Db            float64
	PreFECBER         float64
	PostFECBER        float64
	FER               float64
	ConvergedFraction float64
	Frames            int
}

// SweepReport is a BER/FER-versus-Es/N0 curve over a fixed code,
// modulation and seed.
type SweepReport struct {
	RunID  string
	Points []SweepPoint
}

// SweepEsN0 measures the chain at each Es/N0 point with framesPerPoint
// random blocks. Blocks and per-frame noise seeds are identical across
// points, so the curve is a paired comparison: only the noise scale
// changes between points, never the noise shape. Logger is optional.
func SweepEsN0(ctx context.Context, cfg Config, esN0Points []float64, framesPerPoint int, logger *log.Logger) (*SweepReport, error) {
	report := &SweepReport{
		RunID:  uuid.NewString(),
		Points: make([]SweepPoint, 0, len(esN0Points)),
	}

	blocks := RandomBlocks(framesPerPoint, cfg.K, cfg.Seed)

	for _, esN0 := range esN0Points {
		pointCfg := cfg
		pointCfg.EsN0Db = esN0

		link, err := NewLink(pointCfg)
		if err != nil {
			return nil, err
		}

		runner := &Runner{Link: link, Logger: logger}
		batch, err := runner.RunBatch(ctx, blocks)
		if err != nil {
			return nil, err
		}

		counted := batch.Converged + batch.Exhausted
		point := SweepPoint{
			EsN0Db:     esN0,
			PreFECBER:  batch.PreFECBER,
			PostFECBER: batch.PostFECBER,
			FER:        batch.FER,
			Frames:     counted,
		}
		if counted > 0 {
			point.ConvergedFraction = float64(batch.Converged) / float64(counted)
		}
		report.Points = append(report.Points, point)

		if logger != nil {
			logger.Info("sweep point",
				"es_n0_db", esN0,
				"postfec_ber", point.PostFECBER,
				"fer", point.FER,
				"converged_fraction", point.ConvergedFraction)
		}
	}

	return report, nil
}
