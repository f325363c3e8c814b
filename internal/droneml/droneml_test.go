package droneml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax2_SumsToOne(t *testing.T) {
	cases := [][2]float64{
		{0, 0},
		{1.5, -0.5},
		{-3, 7},
		{1000, 1001}, // large logits must not overflow
	}
	for _, c := range cases {
		pa, pb := softmax2(c[0], c[1])
		assert.InDelta(t, 1.0, pa+pb, 1e-12)
		assert.False(t, math.IsNaN(pa) || math.IsNaN(pb))
	}
}

func TestSoftmax2_OrderingFollowsLogits(t *testing.T) {
	pa, pb := softmax2(-1.0, 2.0)
	assert.Less(t, pa, pb)
}

func TestPredictionFromLogits_Threshold(t *testing.T) {
	// Equal logits give a 0.5 drone probability.
	p := predictionFromLogits(0, 0, 0.5)
	assert.True(t, p.IsPositive, "0.5 meets an inclusive 0.5 threshold")
	assert.InDelta(t, 0.5, p.Confidence, 1e-12)

	p = predictionFromLogits(0, 0, 0.7)
	assert.False(t, p.IsPositive)
	assert.InDelta(t, 0.5, p.Probabilities.NotDrone, 1e-12)
	assert.InDelta(t, 0.5, p.Probabilities.Drone, 1e-12)
}

func TestStaticClassifier(t *testing.T) {
	c := &StaticClassifier{DroneProbability: 0.9}
	p, err := c.Classify(nil, 0.7)
	require.NoError(t, err)
	assert.True(t, p.IsPositive)
	assert.InDelta(t, 0.9, p.Confidence, 1e-12)
	assert.InDelta(t, 0.1, p.Probabilities.NotDrone, 1e-12)
}
