package droneml

import (
	"github.com/dronewatch/dronewatch-go/internal/features"
)

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(tensor *features.FeatureTensor, threshold float64) (Prediction, error)

func (f ClassifierFunc) Classify(tensor *features.FeatureTensor, threshold float64) (Prediction, error) {
	return f(tensor, threshold)
}

func (f ClassifierFunc) Close() error { return nil }

// StaticClassifier always reports the same drone probability. It backs the
// simulated monitoring source and tests that do not care about model output.
type StaticClassifier struct {
	DroneProbability float64
}

var _ Classifier = (*StaticClassifier)(nil)

func (c *StaticClassifier) Classify(_ *features.FeatureTensor, threshold float64) (Prediction, error) {
	return Prediction{
		IsPositive: c.DroneProbability >= threshold,
		Confidence: c.DroneProbability,
		Probabilities: ClassProbabilities{
			NotDrone: 1 - c.DroneProbability,
			Drone:    c.DroneProbability,
		},
	}, nil
}

func (c *StaticClassifier) Close() error { return nil }
