// Package localization estimates a sound source's 2-D position from
// inter-channel time differences and known microphone geometry.
package localization

import (
	"github.com/dronewatch/dronewatch-go/internal/conf"
)

// MicrophoneArray is an ordered, immutable set of 2-D microphone positions
// in meters. Index 0 is the time and position reference.
type MicrophoneArray struct {
	positions []conf.MicPosition
}

// NewMicrophoneArray copies the given positions into an array.
func NewMicrophoneArray(positions []conf.MicPosition) MicrophoneArray {
	cp := make([]conf.MicPosition, len(positions))
	copy(cp, positions)
	return MicrophoneArray{positions: cp}
}

// ArrayFromSettings builds the array from the localization configuration.
func ArrayFromSettings(settings *conf.LocalizationSettings) MicrophoneArray {
	return NewMicrophoneArray(settings.MicPositions)
}

// Count returns the number of microphones.
func (a MicrophoneArray) Count() int {
	return len(a.positions)
}

// Position returns the i-th microphone position.
func (a MicrophoneArray) Position(i int) conf.MicPosition {
	return a.positions[i]
}

// TDOAVector holds one delay in seconds per non-reference microphone,
// ordered by microphone index. Each delay's magnitude is bounded by the
// physical plausibility check in the estimator; implausible values arrive
// here already clamped to zero.
type TDOAVector []float64

// PositionEstimate is a solved 2-D position in the array's local frame.
// OutOfBounds is set when the raw solution fell outside the configured
// bounding box and the documented default point was substituted.
type PositionEstimate struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	OutOfBounds bool    `json:"out_of_bounds"`
}
