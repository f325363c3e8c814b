package monitor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

// SimulatedSource synthesizes a single-channel noise waveform on every pull.
// It stands in for a capture device when none is available; single-channel
// output means any positive detection takes the simulated-localization path.
type SimulatedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // G404: synthetic audio, not security
	}
}

func (s *SimulatedSource) Recent(duration float64) *myaudio.Waveform {
	n := int(duration * float64(conf.SampleRate))
	samples := make([]float32, n)

	s.mu.Lock()
	for i := range samples {
		samples[i] = float32(s.rng.NormFloat64() * 0.05)
	}
	s.mu.Unlock()

	return &myaudio.Waveform{
		Channels:   [][]float32{samples},
		SampleRate: conf.SampleRate,
	}
}
