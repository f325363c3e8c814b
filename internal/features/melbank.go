// Package features turns decoded waveforms into the fixed-shape spectral
// tensor the classifier was trained on.
package features

import (
	"fmt"
	"math"

	gocache "github.com/patrickmn/go-cache"
)

// filterBankCache holds built mel filter banks. A bank depends only on
// (sampleRate, nMels, nFFTBins), so for a fixed configuration it is built
// exactly once.
var filterBankCache = gocache.New(gocache.NoExpiration, 0)

// hzToMel converts a frequency in Hz to the mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts a mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}

// MelFilterBank returns the [nMels][nFFTBins] triangular filter matrix for
// the given configuration, building and caching it on first use.
func MelFilterBank(sampleRate, nMels, nFFTBins int) [][]float64 {
	key := fmt.Sprintf("%d:%d:%d", sampleRate, nMels, nFFTBins)
	if cached, ok := filterBankCache.Get(key); ok {
		return cached.([][]float64)
	}
	bank := buildMelFilterBank(sampleRate, nMels, nFFTBins)
	filterBankCache.Set(key, bank, gocache.NoExpiration)
	return bank
}

// buildMelFilterBank places nMels+2 points equally spaced in mel space
// between 0 Hz and Nyquist, maps them to FFT bin indices and builds
// triangular filters between consecutive bin triples. Degenerate triples
// (bins collapsing at low frequency resolution) leave that filter all-zero.
func buildMelFilterBank(sampleRate, nMels, nFFTBins int) [][]float64 {
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2)

	hzPoints := make([]float64, nMels+2)
	binPoints := make([]int, nMels+2)
	for i := range hzPoints {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(nMels+1)
		hzPoints[i] = melToHz(mel)
		binPoints[i] = int(math.Floor(float64(nFFTBins+1) * hzPoints[i] / float64(sampleRate)))
	}

	filters := make([][]float64, nMels)
	for i := range filters {
		filters[i] = make([]float64, nFFTBins)

		left, center, right := binPoints[i], binPoints[i+1], binPoints[i+2]
		if !(left < center && center < right) {
			continue
		}

		rise := center - left
		for j := left; j < center && j < nFFTBins; j++ {
			if rise > 1 {
				filters[i][j] = float64(j-left) / float64(rise-1)
			}
		}
		fall := right - center
		for j := center; j < right && j < nFFTBins; j++ {
			if fall > 1 {
				filters[i][j] = 1.0 - float64(j-center)/float64(fall-1)
			} else {
				filters[i][j] = 1.0
			}
		}

		// Normalize so filter energy is comparable across bands.
		enorm := 2.0 / (hzPoints[i+2] - hzPoints[i])
		for j := range filters[i] {
			filters[i][j] *= enorm
		}
	}

	return filters
}
