package linksim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is a power-spectrum snapshot of a channel-sample sequence, for
// the diagnostic/visualization consumer. Power values are in dB relative
// to the strongest bin.
type Spectrum struct {
	PowerDb      []float64 // fftSize bins, DC-centered
	NoiseFloorDb float64   // 10th-percentile bin power
	PeakDb       float64   // always 0 by construction
}

// AnalyzeSpectrum estimates the power spectrum of complex channel samples
// by averaging Hann-windowed FFT segments. fftSize must be a power of two
// no larger than the sample count.
func AnalyzeSpectrum(samples []complex128, fftSize int) (*Spectrum, error) {
	if fftSize < 8 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("linksim: fft size %d is not a power of two >= 8", fftSize)
	}
	if len(samples) < fftSize {
		return nil, fmt.Errorf("linksim: %d samples, need at least %d", len(samples), fftSize)
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(fftSize-1)))
	}

	fft := fourier.NewCmplxFFT(fftSize)
	power := make([]float64, fftSize)
	segment := make([]complex128, fftSize)

	segments := 0
	for off := 0; off+fftSize <= len(samples); off += fftSize {
		for i := 0; i < fftSize; i++ {
			segment[i] = samples[off+i] * complex(window[i], 0)
		}
		coeffs := fft.Coefficients(nil, segment)
		for i, c := range coeffs {
			// DC-centered ordering.
			bin := (i + fftSize/2) % fftSize
			power[bin] += real(c)*real(c) + imag(c)*imag(c)
		}
		segments++
	}

	peak := 0.0
	for i := range power {
		power[i] /= float64(segments)
		if power[i] > peak {
			peak = power[i]
		}
	}
	if peak <= 0 {
		peak = 1e-30
	}

	db := make([]float64, fftSize)
	for i, p := range power {
		if p < 1e-30 {
			p = 1e-30
		}
		db[i] = 10 * math.Log10(p/peak)
	}

	return &Spectrum{
		PowerDb:      db,
		NoiseFloorDb: percentile(db, 10),
		PeakDb:       0,
	}, nil
}

// percentile returns the p-th percentile of values (0-100).
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[idx]
}
