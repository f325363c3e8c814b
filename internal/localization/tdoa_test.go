package localization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

const testSampleRate = 8000

func testEstimator() *Estimator {
	return NewEstimator(&conf.LocalizationSettings{
		SpeedOfSound:     343.0,
		MaxMicSeparation: 2.0,
	})
}

// burstSignal returns a signal with an impulse-like burst at the given
// sample offset, long enough for a clean correlation peak.
func burstSignal(length, offset int) []float32 {
	s := make([]float32, length)
	for i := 0; i < 32 && offset+i < length; i++ {
		s[offset+i] = float32(math.Sin(2 * math.Pi * float64(i) / 8.0) * math.Exp(-float64(i)/10.0))
	}
	return s
}

func TestEstimate_RequiresThreeChannels(t *testing.T) {
	w := &myaudio.Waveform{
		Channels:   [][]float32{make([]float32, 256), make([]float32, 256)},
		SampleRate: testSampleRate,
	}
	_, err := testEstimator().Estimate(w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientChannels))
}

func TestEstimate_RejectsTooShortAudio(t *testing.T) {
	for name, channels := range map[string][][]float32{
		"empty":         {{}, {}, {}},
		"single sample": {{0.5}, {0.5}, {0.5}},
	} {
		t.Run(name, func(t *testing.T) {
			w := &myaudio.Waveform{Channels: channels, SampleRate: testSampleRate}
			_, err := testEstimator().Estimate(w)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrAudioTooShort))
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
}

func TestEstimate_ZeroDelayIdentity(t *testing.T) {
	ch := burstSignal(2048, 900)
	w := &myaudio.Waveform{
		Channels:   [][]float32{ch, ch, ch},
		SampleRate: testSampleRate,
	}

	tdoas, err := testEstimator().Estimate(w)
	require.NoError(t, err)
	require.Len(t, tdoas, 2)
	for _, tdoa := range tdoas {
		assert.InDelta(t, 0.0, tdoa, 1e-4)
	}
}

func TestEstimate_KnownDelayRecovered(t *testing.T) {
	// Channel 1 receives the burst 8 samples later than the reference:
	// 1 ms at 8 kHz, well inside the ~5.8 ms plausibility bound.
	ref := burstSignal(2048, 900)
	delayed := burstSignal(2048, 908)
	w := &myaudio.Waveform{
		Channels:   [][]float32{ref, delayed, ref},
		SampleRate: testSampleRate,
	}

	tdoas, err := testEstimator().Estimate(w)
	require.NoError(t, err)
	require.Len(t, tdoas, 2)

	assert.InDelta(t, 8.0/testSampleRate, math.Abs(tdoas[0]), 2.0/testSampleRate)
	assert.InDelta(t, 0.0, tdoas[1], 1e-4)
}

func TestEstimate_ImplausibleDelayClampedToZero(t *testing.T) {
	// A burst a full second apart between channels correlates at a delay
	// far beyond maxSeparation/speedOfSound and must clamp to zero.
	length := 2*testSampleRate + 256
	ref := burstSignal(length, 100)
	late := burstSignal(length, 100+testSampleRate)
	w := &myaudio.Waveform{
		Channels:   [][]float32{ref, late, ref},
		SampleRate: testSampleRate,
	}

	tdoas, err := testEstimator().Estimate(w)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tdoas[0], 1e-9, "1s delay exceeds the physical bound and must clamp")
}

func TestEstimate_SilentInputDoesNotDivideByZero(t *testing.T) {
	silent := make([]float32, 1024)
	w := &myaudio.Waveform{
		Channels:   [][]float32{silent, silent, silent},
		SampleRate: testSampleRate,
	}
	tdoas, err := testEstimator().Estimate(w)
	require.NoError(t, err)
	for _, tdoa := range tdoas {
		assert.False(t, math.IsNaN(tdoa))
	}
}

func TestCrossCorrelate_MatchesDirect(t *testing.T) {
	a := []float64{1, 2, 3, 0, -1}
	v := []float64{0, 1, 0.5}

	got := crossCorrelate(a, v)
	require.Len(t, got, len(a)+len(v)-1)

	// Direct full-overlap correlation for reference.
	want := make([]float64, len(a)+len(v)-1)
	for k := range want {
		lag := k - (len(v) - 1)
		var sum float64
		for i := range a {
			j := i - lag
			if j >= 0 && j < len(v) {
				sum += a[i] * v[j]
			}
		}
		want[k] = sum
	}

	for k := range want {
		assert.InDelta(t, want[k], got[k], 1e-9, "lag index %d", k)
	}
}

func TestRefinePeak_Boundaries(t *testing.T) {
	assert.InDelta(t, 0.0, refinePeak([]float64{5, 1, 0}), 1e-9)
	assert.InDelta(t, 2.0, refinePeak([]float64{0, 1, 5}), 1e-9)
}

func TestRefinePeak_SubSample(t *testing.T) {
	// Samples of a parabola with apex at x = 1.25.
	f := func(x float64) float64 { return 4 - (x-1.25)*(x-1.25) }
	corr := []float64{f(0), f(1), f(2)}
	assert.InDelta(t, 1.25, refinePeak(corr), 1e-9)
}
