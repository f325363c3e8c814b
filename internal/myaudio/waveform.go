// Package myaudio handles audio decoding, conversion and capture for the
// analysis pipeline.
package myaudio

import (
	"github.com/dronewatch/dronewatch-go/internal/conf"
)

// Waveform is an immutable decoded audio clip. All channels have equal
// length; transformations return new waveforms instead of mutating in place.
type Waveform struct {
	Channels   [][]float32
	SampleRate int
}

// NumChannels returns the channel count.
func (w *Waveform) NumChannels() int {
	return len(w.Channels)
}

// NumSamples returns the per-channel sample count.
func (w *Waveform) NumSamples() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// Duration returns the clip length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.NumSamples()) / float64(w.SampleRate)
}

// Mono returns a single-channel downmix by averaging channels. A mono
// waveform is returned as a copy so the receiver stays untouched.
func (w *Waveform) Mono() []float32 {
	n := w.NumSamples()
	mono := make([]float32, n)
	if w.NumChannels() == 0 {
		return mono
	}
	if w.NumChannels() == 1 {
		copy(mono, w.Channels[0])
		return mono
	}
	scale := 1.0 / float32(w.NumChannels())
	for _, ch := range w.Channels {
		for i, s := range ch {
			mono[i] += s * scale
		}
	}
	return mono
}

// Slice returns the [startSample, endSample) window of every channel as a
// new waveform. Bounds are clamped to the clip.
func (w *Waveform) Slice(startSample, endSample int) *Waveform {
	n := w.NumSamples()
	if startSample < 0 {
		startSample = 0
	}
	if endSample > n {
		endSample = n
	}
	if startSample >= endSample {
		return &Waveform{Channels: make([][]float32, 0), SampleRate: w.SampleRate}
	}
	channels := make([][]float32, w.NumChannels())
	for i, ch := range w.Channels {
		window := make([]float32, endSample-startSample)
		copy(window, ch[startSample:endSample])
		channels[i] = window
	}
	return &Waveform{Channels: channels, SampleRate: w.SampleRate}
}

// HasLocalizationChannels reports whether the waveform carries enough
// channels for real TDOA-based localization.
func (w *Waveform) HasLocalizationChannels() bool {
	return w.NumChannels() >= conf.MinLocalizationChannels
}
