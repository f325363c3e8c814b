package localization

import (
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

// Estimator computes inter-channel delays from a multi-channel waveform.
// Channel 0 is the time reference.
type Estimator struct {
	// MaxDelay is the physical plausibility bound in seconds. Delays whose
	// magnitude exceeds it are clamped to zero rather than propagated.
	MaxDelay float64
}

// NewEstimator derives the plausibility bound from the configured maximum
// microphone separation and speed of sound.
func NewEstimator(settings *conf.LocalizationSettings) *Estimator {
	return &Estimator{
		MaxDelay: settings.MaxMicSeparation / settings.SpeedOfSound,
	}
}

// minEstimateSamples is the per-channel floor below which cross-correlation
// carries no lag information.
const minEstimateSamples = 2

// Estimate returns one delay per non-reference channel. It requires at
// least three channels; fewer is an ErrInsufficientChannels error that the
// orchestrator recovers from with the simulated fallback.
func (e *Estimator) Estimate(w *myaudio.Waveform) (TDOAVector, error) {
	if w.NumChannels() < conf.MinLocalizationChannels {
		return nil, errors.New(errors.ErrInsufficientChannels).
			Component("localization").
			Category(errors.CategoryLocalization).
			Context("channels", w.NumChannels()).
			Build()
	}
	if w.NumSamples() < minEstimateSamples {
		return nil, errors.New(errors.ErrAudioTooShort).
			Component("localization").
			Category(errors.CategoryValidation).
			Context("samples", w.NumSamples()).
			Build()
	}

	channels := normalizeByGlobalPeak(w.Channels)
	ref := channels[0]

	tdoas := make(TDOAVector, 0, len(channels)-1)
	for i := 1; i < len(channels); i++ {
		corr := crossCorrelate(ref, channels[i])
		peak := refinePeak(corr)

		// Zero lag sits at index len(ref)-1 of the full correlation.
		lag := peak - float64(len(ref)-1)
		tdoa := lag / float64(w.SampleRate)

		if math.Abs(tdoa) > e.MaxDelay {
			getLogger().Warn("implausible TDOA clamped to zero",
				"channel", i,
				"tdoa_seconds", tdoa,
				"max_delay_seconds", e.MaxDelay)
			observability.TDOAClampedTotal.Inc()
			tdoa = 0.0
		}
		tdoas = append(tdoas, tdoa)
	}
	return tdoas, nil
}

// normalizeByGlobalPeak scales all channels by the single largest absolute
// sample so relative channel levels are preserved.
func normalizeByGlobalPeak(channels [][]float32) [][]float64 {
	var peak float64
	for _, ch := range channels {
		for _, s := range ch {
			if a := math.Abs(float64(s)); a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		peak = 1
	}

	out := make([][]float64, len(channels))
	for i, ch := range channels {
		scaled := make([]float64, len(ch))
		for j, s := range ch {
			scaled[j] = float64(s) / peak
		}
		out[i] = scaled
	}
	return out
}

// crossCorrelate computes the full cross-correlation of a and v via FFT.
// The result has length len(a)+len(v)-1 with zero lag at index len(v)-1,
// matching a direct full-overlap correlation.
func crossCorrelate(a, v []float64) []float64 {
	n := len(a)
	m := len(v)
	full := n + m - 1

	size := 1
	for size < full {
		size <<= 1
	}

	pa := make([]float64, size)
	pv := make([]float64, size)
	copy(pa, a)
	copy(pv, v)

	fa := fft.FFTReal(pa)
	fv := fft.FFTReal(pv)

	prod := make([]complex128, size)
	for i := range prod {
		prod[i] = fa[i] * cmplx.Conj(fv[i])
	}
	circ := fft.IFFT(prod)

	// circ[l] holds correlation at lag l >= 0; negative lags wrap around.
	out := make([]float64, full)
	for k := 0; k < full; k++ {
		lag := k - (m - 1)
		idx := lag
		if idx < 0 {
			idx += size
		}
		out[k] = real(circ[idx])
	}
	return out
}

// refinePeak finds the peak absolute correlation and refines its location
// with parabolic interpolation over the three samples straddling it.
// Refinement is skipped at either boundary.
func refinePeak(corr []float64) float64 {
	peakIdx := 0
	peakVal := math.Abs(corr[0])
	for i, v := range corr {
		if a := math.Abs(v); a > peakVal {
			peakVal = a
			peakIdx = i
		}
	}

	if peakIdx == 0 || peakIdx == len(corr)-1 {
		return float64(peakIdx)
	}

	y1 := corr[peakIdx-1]
	y2 := corr[peakIdx]
	y3 := corr[peakIdx+1]

	denom := 2 * (2*y2 - y1 - y3)
	if denom == 0 {
		return float64(peakIdx)
	}
	return float64(peakIdx) + (y3-y1)/denom
}

func getLogger() *slog.Logger {
	if l := logging.ForService("localization"); l != nil {
		return l
	}
	return slog.Default()
}
