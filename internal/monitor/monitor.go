// Package monitor runs the realtime detection loop: on a fixed interval it
// pulls the most recent analysis window from an audio source, runs the
// detection orchestrator and fans positive detections out to sinks.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

func getLogger() *slog.Logger {
	if l := logging.ForService("monitor"); l != nil {
		return l
	}
	return slog.Default()
}

// Source supplies the most recent stretch of audio for one monitoring
// iteration. Recent returns nil when not enough audio has accumulated yet.
type Source interface {
	Recent(duration float64) *myaudio.Waveform
}

// Sink consumes positive detections. Sinks run on the monitoring goroutine
// and should hand slow work off themselves.
type Sink func(*analysis.DetectionResult)

// Status is a snapshot of the controller state.
type Status struct {
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Interval   float64   `json:"interval_seconds"`
	Iterations uint64    `json:"iterations"`
	Detections uint64    `json:"detections"`
}

// Controller owns the monitoring goroutine. Start and Stop may be called
// from any goroutine at any time; Stop waits for an in-flight iteration to
// finish, so no detection is left running unobserved.
type Controller struct {
	settings     *conf.Settings
	orchestrator *analysis.Orchestrator
	source       Source

	mu         sync.Mutex
	sinks      []Sink
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time
	iterations uint64
	detections uint64
}

func NewController(settings *conf.Settings, orchestrator *analysis.Orchestrator, source Source) *Controller {
	return &Controller{
		settings:     settings,
		orchestrator: orchestrator,
		source:       source,
	}
}

// AddSink registers a consumer for positive detections.
func (c *Controller) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Start launches the monitoring loop. It fails if the loop is already
// running.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return errors.Newf("monitoring already running").
			Component("monitor").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.startedAt = time.Now().UTC()
	c.iterations = 0
	c.detections = 0

	interval := time.Duration(c.settings.Monitor.Interval * float64(time.Second))
	go c.run(ctx, interval, c.done)

	getLogger().Info("monitoring started", "interval", interval)
	return nil
}

// Stop cancels the loop and waits for it to exit. Calling Stop on a stopped
// controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	getLogger().Info("monitoring stopped")
}

// IsRunning reports whether the loop is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Running:    c.cancel != nil,
		Interval:   c.settings.Monitor.Interval,
		Iterations: c.iterations,
		Detections: c.detections,
	}
	if s.Running {
		s.StartedAt = c.startedAt
	}
	return s
}

func (c *Controller) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.iterate()
		}
	}
}

func (c *Controller) iterate() {
	c.mu.Lock()
	c.iterations++
	c.mu.Unlock()

	w := c.source.Recent(conf.TargetDuration)
	if w == nil {
		return
	}

	result, err := c.orchestrator.DetectAndLocalize(w, analysis.DetectOptions{})
	if err != nil {
		getLogger().Warn("monitoring detection failed", "error", err)
		return
	}
	if !result.DroneDetected {
		return
	}

	c.mu.Lock()
	c.detections++
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.Unlock()

	getLogger().Info("drone detected",
		"confidence", result.Confidence,
		"simulated_localization", result.Localization != nil && result.Localization.Simulated)
	for _, sink := range sinks {
		sink(result)
	}
}
