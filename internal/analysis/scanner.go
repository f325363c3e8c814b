// Package analysis coordinates the detection pipeline: feature extraction,
// classification, long-audio segmentation and localization.
package analysis

import (
	"log/slog"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/features"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

func getLogger() *slog.Logger {
	if l := logging.ForService("analysis"); l != nil {
		return l
	}
	return slog.Default()
}

// Segment is one fixed-duration analysis window of a longer recording with
// its classification outcome. Start/end sample indices are kept so the
// orchestrator can slice the original waveform for localization.
type Segment struct {
	StartTime     float64                    `json:"start_time"`
	EndTime       float64                    `json:"end_time"`
	Confidence    float64                    `json:"confidence"`
	IsPositive    bool                       `json:"is_positive"`
	Probabilities droneml.ClassProbabilities `json:"class_probabilities"`

	startSample int
	endSample   int
	err         error
}

// Err returns the segment's classification error, nil for a clean segment.
func (s *Segment) Err() error { return s.err }

// ScanResult aggregates the per-window outcomes of one long-audio scan.
type ScanResult struct {
	Detected         bool      `json:"detected"`
	MaxConfidence    float64   `json:"max_confidence"`
	DetectedSegments int       `json:"detected_segments"`
	Segments         []Segment `json:"segments"`

	// BestSegment points into Segments at the window with the highest
	// confidence, ties broken by first occurrence. Nil only when every
	// segment failed.
	BestSegment *Segment `json:"best_segment,omitempty"`
}

// SegmentScanner slides a fixed 3 s window with 50% overlap over long audio
// and classifies each window independently.
type SegmentScanner struct {
	Classifier droneml.Classifier
}

func NewSegmentScanner(classifier droneml.Classifier) *SegmentScanner {
	return &SegmentScanner{Classifier: classifier}
}

// Scan classifies every full window of the waveform. A trailing partial
// window is dropped, not padded. A window whose extraction or classification
// fails is recorded with its error and excluded from the aggregate; Scan
// itself fails only when no window produced a result.
func (s *SegmentScanner) Scan(w *myaudio.Waveform, threshold float64) (*ScanResult, error) {
	windowSamples := int(conf.TargetDuration * float64(w.SampleRate))
	hopSamples := windowSamples / 2

	if w.NumSamples() < windowSamples {
		return nil, errors.Newf("audio too short for segmented analysis: %d samples, need %d",
			w.NumSamples(), windowSamples).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	result := &ScanResult{}
	for start := 0; start+windowSamples <= w.NumSamples(); start += hopSamples {
		end := start + windowSamples
		seg := Segment{
			StartTime:   float64(start) / float64(w.SampleRate),
			EndTime:     float64(end) / float64(w.SampleRate),
			startSample: start,
			endSample:   end,
		}

		observability.SegmentsScannedTotal.Inc()
		seg.err = s.classifySegment(w, &seg, threshold)
		result.Segments = append(result.Segments, seg)
	}

	clean := 0
	for i := range result.Segments {
		seg := &result.Segments[i]
		if seg.err != nil {
			getLogger().Warn("segment classification failed",
				"start_time", seg.StartTime, "error", seg.err)
			continue
		}
		clean++
		if seg.IsPositive {
			result.DetectedSegments++
		}
		if result.BestSegment == nil || seg.Confidence > result.BestSegment.Confidence {
			result.BestSegment = seg
			result.MaxConfidence = seg.Confidence
		}
	}
	if clean == 0 {
		return nil, errors.Newf("all %d segments failed classification", len(result.Segments)).
			Component("analysis").
			Category(errors.CategoryFeatureExtraction).
			Build()
	}

	result.Detected = result.MaxConfidence >= threshold
	return result, nil
}

func (s *SegmentScanner) classifySegment(w *myaudio.Waveform, seg *Segment, threshold float64) error {
	window := w.Slice(seg.startSample, seg.endSample)
	tensor, err := features.Extract(window)
	if err != nil {
		return err
	}
	pred, err := s.Classifier.Classify(tensor, threshold)
	if err != nil {
		return err
	}
	seg.Confidence = pred.Confidence
	seg.IsPositive = pred.IsPositive
	seg.Probabilities = pred.Probabilities
	return nil
}
