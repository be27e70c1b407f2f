package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exports batch-run statistics to Prometheus. All methods are
// nil-safe: a nil *Collector is a no-op, so instrumentation can be switched
// off by simply not constructing one.
type Collector struct {
	framesTotal      *prometheus.CounterVec // outcome: converged|exhausted|skipped
	decoderIters     prometheus.Histogram
	preFECBitErrors  prometheus.Counter
	postFECBitErrors prometheus.Counter
	bitsTotal        prometheus.Counter
	preFECBER        prometheus.Gauge
	postFECBER       prometheus.Gauge
	frameErrorRate   prometheus.Gauge
}

// NewCollector registers the link-simulation metrics with reg. Pass
// prometheus.DefaultRegisterer for the usual global registry, or a private
// registry in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linksim_frames_total",
			Help: "Frames processed, labelled by decode outcome",
		}, []string{"outcome"}),
		decoderIters: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linksim_decoder_iterations",
			Help:    "Belief-propagation iterations consumed per frame",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}),
		preFECBitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "linksim_prefec_bit_errors_total",
			Help: "Channel bit errors before FEC decoding",
		}),
		postFECBitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "linksim_postfec_bit_errors_total",
			Help: "Residual bit errors after FEC decoding",
		}),
		bitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "linksim_codeword_bits_total",
			Help: "Codeword bits pushed through the channel",
		}),
		preFECBER: factory.NewGauge(prometheus.GaugeOpts{
			Name: "linksim_prefec_ber",
			Help: "Pre-FEC bit error rate of the last completed batch",
		}),
		postFECBER: factory.NewGauge(prometheus.GaugeOpts{
			Name: "linksim_postfec_ber",
			Help: "Post-FEC bit error rate of the last completed batch",
		}),
		frameErrorRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "linksim_frame_error_rate",
			Help: "Frame error rate of the last completed batch",
		}),
	}
}

// ObserveFrame records one frame traversal.
func (c *Collector) ObserveFrame(outcome string, iterations, preFECErrors, postFECErrors, codewordBits int) {
	if c == nil {
		return
	}
	c.framesTotal.WithLabelValues(outcome).Inc()
	c.decoderIters.Observe(float64(iterations))
	c.preFECBitErrors.Add(float64(preFECErrors))
	c.postFECBitErrors.Add(float64(postFECErrors))
	c.bitsTotal.Add(float64(codewordBits))
}

// ObserveSkipped records a frame dropped for numerical degeneracy.
func (c *Collector) ObserveSkipped() {
	if c == nil {
		return
	}
	c.framesTotal.WithLabelValues("skipped").Inc()
}

// SetBatchRates publishes the aggregate rates of a completed batch.
func (c *Collector) SetBatchRates(preFEC, postFEC, fer float64) {
	if c == nil {
		return
	}
	c.preFECBER.Set(preFEC)
	c.postFECBER.Set(postFEC)
	c.frameErrorRate.Set(fer)
}
