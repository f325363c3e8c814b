package myaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
)

// AudioDeviceInfo holds information about an audio capture device.
type AudioDeviceInfo struct {
	Index int
	Name  string
}

// CaptureBuffer is a bounded multi-channel ring of recent samples fed by the
// capture callback and drained by the monitoring loop.
type CaptureBuffer struct {
	mu          sync.Mutex
	channels    [][]float32
	maxSamples  int
	sampleRate  int
	numChannels int
}

// NewCaptureBuffer creates a ring holding bufferSeconds of audio per channel.
func NewCaptureBuffer(sampleRate, numChannels int, bufferSeconds float64) *CaptureBuffer {
	maxSamples := int(float64(sampleRate) * bufferSeconds)
	channels := make([][]float32, numChannels)
	for i := range channels {
		channels[i] = make([]float32, 0, maxSamples)
	}
	return &CaptureBuffer{
		channels:    channels,
		maxSamples:  maxSamples,
		sampleRate:  sampleRate,
		numChannels: numChannels,
	}
}

// WriteInterleaved appends interleaved frames, discarding the oldest samples
// once the ring is full.
func (cb *CaptureBuffer) WriteInterleaved(frames []float32) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Partial trailing frames are dropped.
	for i := 0; i+cb.numChannels <= len(frames); i += cb.numChannels {
		for ch := 0; ch < cb.numChannels; ch++ {
			cb.channels[ch] = append(cb.channels[ch], frames[i+ch])
		}
	}
	for ch := range cb.channels {
		if overflow := len(cb.channels[ch]) - cb.maxSamples; overflow > 0 {
			cb.channels[ch] = append(cb.channels[ch][:0], cb.channels[ch][overflow:]...)
		}
	}
}

// Recent returns the newest duration seconds of audio as a Waveform, or nil
// if the ring does not yet hold that much.
func (cb *CaptureBuffer) Recent(duration float64) *Waveform {
	needed := int(float64(cb.sampleRate) * duration)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(cb.channels) == 0 || len(cb.channels[0]) < needed {
		return nil
	}
	channels := make([][]float32, cb.numChannels)
	for ch := range cb.channels {
		window := make([]float32, needed)
		copy(window, cb.channels[ch][len(cb.channels[ch])-needed:])
		channels[ch] = window
	}
	return &Waveform{Channels: channels, SampleRate: cb.sampleRate}
}

// Capture owns a malgo capture device feeding a CaptureBuffer.
type Capture struct {
	Buffer *CaptureBuffer

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	stopOnce sync.Once
}

// ListAudioSources returns the available audio capture devices.
func ListAudioSources() ([]AudioDeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer ctx.Uninit() //nolint:errcheck

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, AudioDeviceInfo{Index: i, Name: info.Name()})
	}
	return devices, nil
}

// StartCapture opens the configured capture device and begins filling a ring
// buffer with float32 frames. The ring holds ten seconds of audio so the
// monitoring loop can always pull a full analysis window.
func StartCapture(settings *conf.Settings) (*Capture, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioCapture).
			Build()
	}

	buffer := NewCaptureBuffer(conf.SampleRate, settings.Audio.Channels, 10.0)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(settings.Audio.Channels)
	deviceConfig.SampleRate = uint32(conf.SampleRate)

	onReceiveFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		buffer.WriteInterleaved(bytesToFloat32(inputSamples))
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onReceiveFrames,
	})
	if err != nil {
		malgoCtx.Uninit() //nolint:errcheck
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioCapture).
			Context("source", settings.Audio.Source).
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit() //nolint:errcheck
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioCapture).
			Build()
	}

	getLogger().Info("audio capture started",
		"channels", settings.Audio.Channels,
		"sample_rate", conf.SampleRate)

	return &Capture{Buffer: buffer, malgoCtx: malgoCtx, device: device}, nil
}

// Stop halts capture and releases the device. Safe to call more than once.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		if c.device != nil {
			_ = c.device.Stop()
			c.device.Uninit()
		}
		if c.malgoCtx != nil {
			c.malgoCtx.Uninit() //nolint:errcheck
		}
	})
}

// bytesToFloat32 reinterprets little-endian IEEE 754 sample bytes.
func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
