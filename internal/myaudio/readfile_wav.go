package myaudio

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
)

// AudioInfo describes a decoded audio file.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
}

// getAudioDivisor returns the divisor converting integer PCM samples to
// float32 in [-1, 1].
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio file bit depth: %d", bitDepth)
	}
}

// ReadWAVInfo reads WAV header information without decoding samples.
func ReadWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return AudioInfo{}, stderrors.New("invalid WAV file format")
	}

	if _, err := getAudioDivisor(int(decoder.BitDepth)); err != nil {
		return AudioInfo{}, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return AudioInfo{}, err
	}

	bytesPerSample := int(decoder.BitDepth / 8)
	totalSamples := int(fileInfo.Size()) / bytesPerSample / int(decoder.NumChans)

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

// ReadWAVFile decodes a WAV file into a multi-channel Waveform at the
// analysis sample rate. Channels are preserved for TDOA use, each channel
// resampled independently when the file rate differs from conf.SampleRate.
func ReadWAVFile(path string) (*Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("path", path).
			Build()
	}
	defer file.Close() //nolint:errcheck

	return DecodeWAV(file)
}

// DecodeWAV decodes WAV data from an io.ReadSeeker into a Waveform.
func DecodeWAV(r io.ReadSeeker) (*Waveform, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	numChans := int(decoder.NumChans)
	if numChans < 1 {
		return nil, errors.Newf("WAV reports %d channels", numChans).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	sourceRate := int(decoder.SampleRate)
	channels := make([][]float32, numChans)

	buf := &audio.IntBuffer{
		Data:   make([]int, 8192*numChans),
		Format: &audio.Format{SampleRate: sourceRate, NumChannels: numChans},
	}

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryAudioDecode).
				Build()
		}
		if n == 0 {
			break
		}

		// Deinterleave frames into per-channel slices.
		for i := 0; i < n; i++ {
			ch := i % numChans
			channels[ch] = append(channels[ch], float32(buf.Data[i])/divisor)
		}
	}

	if sourceRate != conf.SampleRate {
		for i := range channels {
			channels[i], err = ResampleAudio(channels[i], sourceRate, conf.SampleRate)
			if err != nil {
				return nil, errors.New(fmt.Errorf("error resampling audio: %w", err)).
					Component("myaudio").
					Category(errors.CategoryAudioDecode).
					Context("source_rate", sourceRate).
					Build()
			}
		}
	}

	return &Waveform{Channels: channels, SampleRate: conf.SampleRate}, nil
}
