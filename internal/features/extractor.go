package features

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

const logFloor = 1e-10
const stdFloor = 1e-8

// Extract converts a waveform into the fixed-shape feature tensor. The
// operation is deterministic and pure: the same waveform always yields a
// bit-identical tensor.
//
// Multi-channel input is downmixed to mono for feature extraction; the
// caller keeps the original waveform for TDOA use.
func Extract(w *myaudio.Waveform) (*FeatureTensor, error) {
	start := time.Now()
	defer func() {
		observability.FeatureExtractionSeconds.Observe(time.Since(start).Seconds())
	}()

	mono := w.Mono()
	targetSamples := int(conf.TargetDuration * float64(w.SampleRate))
	padded := myaudio.PadOrTruncate(mono, targetSamples)

	spectrogram := magnitudeSpectrogram(padded)
	if len(spectrogram) == 0 {
		return nil, errors.Newf("waveform too short for a single STFT frame").
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Context("samples", len(padded)).
			Build()
	}

	melSpec := applyFilterBank(spectrogram, w.SampleRate)

	// dB-like scale with a floor so silent frames do not produce -Inf.
	for i := range melSpec {
		for j := range melSpec[i] {
			melSpec[i][j] = 10 * math.Log10(melSpec[i][j]+logFloor)
		}
	}

	melSpec = resizeTimeAxis(melSpec, conf.ExpectedTimeFrames)
	normalize(melSpec)

	tensor, ok := replicateChannels(melSpec)
	if !ok {
		return nil, errors.New(errors.ErrNonFiniteFeatures).
			Component("features").
			Category(errors.CategoryFeatureExtraction).
			Build()
	}
	return tensor, nil
}

// magnitudeSpectrogram computes the Hann-windowed STFT magnitude,
// [nBins][nFrames] with nBins = NFFT/2 + 1.
func magnitudeSpectrogram(samples []float32) [][]float64 {
	nFrames := 0
	if len(samples) >= conf.NFFT {
		nFrames = 1 + (len(samples)-conf.NFFT)/conf.HopLength
	}
	if nFrames == 0 {
		return nil
	}

	window := hannWindow(conf.NFFT)
	nBins := conf.NFFT/2 + 1

	// Bin-major layout so the filter bank multiply walks rows linearly.
	spec := make([][]float64, nBins)
	for b := range spec {
		spec[b] = make([]float64, nFrames)
	}

	frame := make([]float64, conf.NFFT)
	for t := 0; t < nFrames; t++ {
		offset := t * conf.HopLength
		for i := 0; i < conf.NFFT; i++ {
			frame[i] = float64(samples[offset+i]) * window[i]
		}
		coeffs := fft.FFTReal(frame)
		for b := 0; b < nBins; b++ {
			spec[b][t] = cmplx.Abs(coeffs[b])
		}
	}
	return spec
}

// hannWindow returns the periodic Hann window of the given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size)))
	}
	return w
}

// applyFilterBank warps the linear-frequency spectrogram into mel bands.
func applyFilterBank(spec [][]float64, sampleRate int) [][]float64 {
	nBins := len(spec)
	nFrames := len(spec[0])
	bank := MelFilterBank(sampleRate, conf.NMels, nBins)

	mel := make([][]float64, conf.NMels)
	for m := range mel {
		mel[m] = make([]float64, nFrames)
		for b := 0; b < nBins; b++ {
			coeff := bank[m][b]
			if coeff == 0 {
				continue
			}
			row := spec[b]
			for t := 0; t < nFrames; t++ {
				mel[m][t] += coeff * row[t]
			}
		}
	}
	return mel
}

// resizeTimeAxis linearly interpolates each mel row to exactly targetFrames.
// Positions past the last source frame repeat it, so the output length never
// drifts with sample-rate or windowing rounding.
func resizeTimeAxis(mel [][]float64, targetFrames int) [][]float64 {
	current := len(mel[0])
	if current == targetFrames {
		return mel
	}

	out := make([][]float64, len(mel))
	scale := float64(current-1) / float64(targetFrames-1)
	for m := range mel {
		row := make([]float64, targetFrames)
		for t := 0; t < targetFrames; t++ {
			pos := float64(t) * scale
			lo := int(pos)
			if lo >= current-1 {
				row[t] = mel[m][current-1]
				continue
			}
			frac := pos - float64(lo)
			row[t] = mel[m][lo]*(1-frac) + mel[m][lo+1]*frac
		}
		out[m] = row
	}
	return out
}

// normalize applies zero-mean unit-variance normalization over the whole
// 2-D tensor.
func normalize(mel [][]float64) {
	var sum, count float64
	for _, row := range mel {
		for _, v := range row {
			sum += v
			count++
		}
	}
	mean := sum / count

	var variance float64
	for _, row := range mel {
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
	}
	std := math.Sqrt(variance/count) + stdFloor

	for _, row := range mel {
		for i, v := range row {
			row[i] = (v - mean) / std
		}
	}
}

// replicateChannels copies the normalized mono plane into all three tensor
// channels, rejecting non-finite values. The classifier expects a 3-channel
// tensor; the channels carry no independent information.
func replicateChannels(mel [][]float64) (*FeatureTensor, bool) {
	plane := conf.NMels * conf.ExpectedTimeFrames
	data := make([]float32, conf.TensorChannels*plane)

	for m := 0; m < conf.NMels; m++ {
		for t := 0; t < conf.ExpectedTimeFrames; t++ {
			v := mel[m][t]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			data[m*conf.ExpectedTimeFrames+t] = float32(v)
		}
	}
	for c := 1; c < conf.TensorChannels; c++ {
		copy(data[c*plane:(c+1)*plane], data[:plane])
	}
	return &FeatureTensor{data: data}, true
}
