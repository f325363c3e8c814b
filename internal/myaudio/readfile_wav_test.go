package myaudio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronewatch/dronewatch-go/internal/conf"
)

// pcmWAV encodes a 16-bit PCM WAV fixture with a sine tone on every channel.
func pcmWAV(channels, sampleRate int, durationSec float64) []byte {
	n := int(durationSec * float64(sampleRate))
	var data bytes.Buffer
	for i := 0; i < n; i++ {
		v := int16(0.25 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 32767)
		for c := 0; c < channels; c++ {
			_ = binary.Write(&data, binary.LittleEndian, v)
		}
	}

	blockAlign := channels * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func writeWAVFixture(t *testing.T, name string, wav []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, wav, 0o644))
	return path
}

func TestReadWAVInfo(t *testing.T) {
	path := writeWAVFixture(t, "clip.wav", pcmWAV(3, conf.SampleRate, 0.25))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	info, err := ReadWAVInfo(f)
	require.NoError(t, err)
	assert.Equal(t, conf.SampleRate, info.SampleRate)
	assert.Equal(t, 3, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
	// TotalSamples is a header-size estimate from file size, never below the
	// actual sample count.
	wantSamples := 0.25 * float64(conf.SampleRate)
	assert.GreaterOrEqual(t, info.TotalSamples, int(wantSamples))
}

func TestReadWAVInfo_RejectsNonWAV(t *testing.T) {
	path := writeWAVFixture(t, "junk.wav", []byte("this is not audio"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	_, err = ReadWAVInfo(f)
	require.Error(t, err)
}

func TestReadWAVFile(t *testing.T) {
	path := writeWAVFixture(t, "stereo.wav", pcmWAV(2, conf.SampleRate, 0.5))

	w, err := ReadWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, w.NumChannels())
	assert.Equal(t, conf.SampleRate, w.SampleRate)
	assert.InDelta(t, 0.5, w.Duration(), 0.01)
}
