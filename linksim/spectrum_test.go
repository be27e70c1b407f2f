package linksim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/cwsl/chimera/channel"
)

func TestAnalyzeSpectrumTone(t *testing.T) {
	// A complex exponential at bin +8 of a 64-point FFT: the peak must
	// land there and the floor must sit far below it.
	const fftSize = 64
	samples := make([]complex128, fftSize*8)
	for i := range samples {
		phase := 2 * math.Pi * 8 * float64(i) / fftSize
		samples[i] = complex(math.Cos(phase), math.Sin(phase))
	}

	spec, err := AnalyzeSpectrum(samples, fftSize)
	require.NoError(t, err)
	require.Len(t, spec.PowerDb, fftSize)

	peakBin := 0
	for i, p := range spec.PowerDb {
		if p > spec.PowerDb[peakBin] {
			peakBin = i
		}
	}
	assert.Equal(t, fftSize/2+8, peakBin)
	assert.Zero(t, spec.PowerDb[peakBin])
	assert.Less(t, spec.NoiseFloorDb, -30.0)
}

func TestAnalyzeSpectrumNoiseIsFlat(t *testing.T) {
	ch, err := channel.NewAWGN(0, 0)
	require.NoError(t, err)

	zeros := make([]complex128, 4096)
	noise := ch.Apply(zeros, rand.New(rand.NewSource(17)))

	spec, err := AnalyzeSpectrum(noise, 256)
	require.NoError(t, err)

	// White noise: the floor sits within a few dB of the peak.
	assert.Greater(t, spec.NoiseFloorDb, -15.0)
}

func TestAnalyzeSpectrumRejectsBadInput(t *testing.T) {
	_, err := AnalyzeSpectrum(make([]complex128, 16), 10)
	assert.Error(t, err, "non power of two")

	_, err = AnalyzeSpectrum(make([]complex128, 16), 4)
	assert.Error(t, err, "too small")

	_, err = AnalyzeSpectrum(make([]complex128, 16), 32)
	assert.Error(t, err, "more bins than samples")
}
