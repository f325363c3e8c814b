package myaudio

import (
	"log/slog"

	"github.com/dronewatch/dronewatch-go/internal/logging"
)

// getLogger returns the audio service logger, falling back to the default
// slog logger when logging has not been initialized (tests).
func getLogger() *slog.Logger {
	if l := logging.ForService("myaudio"); l != nil {
		return l
	}
	return slog.Default()
}
