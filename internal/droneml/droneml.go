// Package droneml defines the classifier oracle boundary: anything that can
// map a fixed-shape feature tensor to drone / not-drone probabilities is a
// valid backend for the detection pipeline.
package droneml

import (
	"math"

	"github.com/dronewatch/dronewatch-go/internal/features"
)

// ClassProbabilities holds the per-class softmax output of one inference.
type ClassProbabilities struct {
	NotDrone float64 `json:"not_drone"`
	Drone    float64 `json:"drone"`
}

// Prediction is the outcome of classifying one analysis window.
// Confidence is always the drone-class probability, not the winning class's
// probability, so a clear negative reports a value near zero.
type Prediction struct {
	IsPositive    bool               `json:"drone_detected"`
	Confidence    float64            `json:"confidence"`
	Probabilities ClassProbabilities `json:"class_probabilities"`
}

// Classifier is the model-inference boundary. Implementations must be safe
// for concurrent Classify calls; the tensor is read-only during the call.
type Classifier interface {
	// Classify runs inference on the tensor and applies the threshold to
	// the drone-class probability.
	Classify(tensor *features.FeatureTensor, threshold float64) (Prediction, error)
	// Close releases model resources. The classifier is unusable afterwards.
	Close() error
}

// predictionFromLogits normalizes the two-class model output with a softmax
// and applies the threshold to the drone-class probability.
func predictionFromLogits(notDrone, drone float32, threshold float64) Prediction {
	pNot, pDrone := softmax2(float64(notDrone), float64(drone))
	return Prediction{
		IsPositive: pDrone >= threshold,
		Confidence: pDrone,
		Probabilities: ClassProbabilities{
			NotDrone: pNot,
			Drone:    pDrone,
		},
	}
}

// softmax2 is a numerically stable two-way softmax.
func softmax2(a, b float64) (pa, pb float64) {
	m := math.Max(a, b)
	ea := math.Exp(a - m)
	eb := math.Exp(b - m)
	sum := ea + eb
	return ea / sum, eb / sum
}

