package analysis

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/features"
	"github.com/dronewatch/dronewatch-go/internal/localization"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

// Simulated localization fallback, used when fewer than three channels are
// available. The base point gets a small jitter so repeated detections do
// not report a suspiciously frozen position.
const (
	simulatedBaseX   = 1.2
	simulatedBaseY   = 0.8
	simulatedJitterX = 0.4
	simulatedJitterY = 0.3
)

var simulatedTDOAs = []float64{0.0012, 0.0008}

// LocalizationResult is the position estimate attached to a positive
// detection. Simulated is the ground truth for downstream consumers: a
// simulated position must never be mistaken for real geometry.
type LocalizationResult struct {
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	TDOAs       []float64 `json:"tdoas"`
	Simulated   bool      `json:"simulated"`
	OutOfBounds bool      `json:"out_of_bounds,omitempty"`
}

// DetectionResult is the outcome of one orchestrated detection call.
// Confidence mirrors droneml.Prediction.Confidence: the drone-class
// probability of the verdict window, not the winning class's probability.
type DetectionResult struct {
	ID            string                     `json:"id"`
	Timestamp     time.Time                  `json:"timestamp"`
	DroneDetected bool                       `json:"drone_detected"`
	Confidence    float64                    `json:"confidence"`
	Probabilities droneml.ClassProbabilities `json:"class_probabilities"`
	AnalysisType  string                     `json:"analysis_type"` // "single" or "segmented"
	Duration      float64                    `json:"duration_seconds"`

	// Scan carries per-segment details for segmented analysis only.
	Scan *ScanResult `json:"segments,omitempty"`

	// Localization is present on every positive detection when requested,
	// real or simulated. On localization failure it is omitted and the
	// reason is surfaced here instead.
	Localization      *LocalizationResult `json:"localization,omitempty"`
	LocalizationError string              `json:"localization_error,omitempty"`
}

// DetectOptions control one detection call.
type DetectOptions struct {
	// Threshold for a positive classification; <= 0 uses the configured
	// default.
	Threshold float64
	// AnalyzeLong enables segmented analysis for audio longer than the
	// configured cutoff.
	AnalyzeLong bool
}

// Orchestrator decides the detection strategy, runs the classifier and
// attaches localization to positive detections.
type Orchestrator struct {
	Settings   *conf.Settings
	Classifier droneml.Classifier
	Scanner    *SegmentScanner
	Estimator  *localization.Estimator
	Solver     *localization.Solver

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewOrchestrator(settings *conf.Settings, classifier droneml.Classifier) *Orchestrator {
	return &Orchestrator{
		Settings:   settings,
		Classifier: classifier,
		Scanner:    NewSegmentScanner(classifier),
		Estimator:  localization.NewEstimator(&settings.Localization),
		Solver:     localization.NewSolver(&settings.Localization),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // G404: jitter, not security
	}
}

func (o *Orchestrator) threshold(opts DetectOptions) float64 {
	if opts.Threshold > 0 {
		return opts.Threshold
	}
	return o.Settings.Detection.Threshold
}

// Detect classifies the waveform without localization. Long audio is scanned
// in overlapping windows when opts.AnalyzeLong is set and the duration
// exceeds the configured cutoff; otherwise the whole waveform is classified
// as a single padded or truncated window.
func (o *Orchestrator) Detect(w *myaudio.Waveform, opts DetectOptions) (*DetectionResult, error) {
	result, _, err := o.detect(w, opts)
	return result, err
}

// detect returns the detection result plus the waveform slice the
// classification verdict is based on, which is what localization should use.
func (o *Orchestrator) detect(w *myaudio.Waveform, opts DetectOptions) (*DetectionResult, *myaudio.Waveform, error) {
	threshold := o.threshold(opts)
	result := &DetectionResult{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Duration:  w.Duration(),
	}

	if opts.AnalyzeLong && w.Duration() > o.Settings.Detection.LongAudioCutoff {
		scan, err := o.Scanner.Scan(w, threshold)
		if err != nil {
			observability.DetectionsTotal.WithLabelValues("error").Inc()
			return nil, nil, err
		}
		result.AnalysisType = "segmented"
		result.Scan = scan
		result.DroneDetected = scan.Detected
		result.Confidence = scan.MaxConfidence
		result.Probabilities = scan.BestSegment.Probabilities

		o.countOutcome(result.DroneDetected)
		best := w.Slice(scan.BestSegment.startSample, scan.BestSegment.endSample)
		return result, best, nil
	}

	tensor, err := features.Extract(w)
	if err != nil {
		observability.DetectionsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	pred, err := o.Classifier.Classify(tensor, threshold)
	if err != nil {
		observability.DetectionsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	result.AnalysisType = "single"
	result.DroneDetected = pred.IsPositive
	result.Confidence = pred.Confidence
	result.Probabilities = pred.Probabilities

	o.countOutcome(result.DroneDetected)
	return result, w, nil
}

// DetectAndLocalize runs Detect and, on a positive verdict, attaches a
// localization object: real when the verdict waveform carries at least three
// channels, simulated otherwise. Negative detections never localize.
func (o *Orchestrator) DetectAndLocalize(w *myaudio.Waveform, opts DetectOptions) (*DetectionResult, error) {
	result, verdictAudio, err := o.detect(w, opts)
	if err != nil {
		return nil, err
	}
	if !result.DroneDetected {
		return result, nil
	}

	if !verdictAudio.HasLocalizationChannels() {
		result.Localization = o.simulatedLocalization()
		observability.SimulatedLocalizationsTotal.Inc()
		getLogger().Info("localization simulated, too few channels",
			"channels", verdictAudio.NumChannels())
		return result, nil
	}

	loc, err := o.localize(verdictAudio)
	if err != nil {
		// The detection verdict stands; the position does not.
		result.LocalizationError = err.Error()
		getLogger().Warn("localization failed", "error", err)
		return result, nil
	}
	result.Localization = loc
	return result, nil
}

func (o *Orchestrator) localize(w *myaudio.Waveform) (*LocalizationResult, error) {
	tdoas, err := o.Estimator.Estimate(w)
	if err != nil {
		return nil, err
	}
	pos, err := o.Solver.Solve(tdoas)
	if err != nil {
		return nil, err
	}
	return &LocalizationResult{
		X:           pos.X,
		Y:           pos.Y,
		TDOAs:       tdoas,
		Simulated:   false,
		OutOfBounds: pos.OutOfBounds,
	}, nil
}

func (o *Orchestrator) simulatedLocalization() *LocalizationResult {
	o.rngMu.Lock()
	jx := (o.rng.Float64()*2 - 1) * simulatedJitterX
	jy := (o.rng.Float64()*2 - 1) * simulatedJitterY
	o.rngMu.Unlock()

	tdoas := make([]float64, len(simulatedTDOAs))
	copy(tdoas, simulatedTDOAs)
	return &LocalizationResult{
		X:         simulatedBaseX + jx,
		Y:         simulatedBaseY + jy,
		TDOAs:     tdoas,
		Simulated: true,
	}
}

func (o *Orchestrator) countOutcome(positive bool) {
	if positive {
		observability.DetectionsTotal.WithLabelValues("positive").Inc()
	} else {
		observability.DetectionsTotal.WithLabelValues("negative").Inc()
	}
}
