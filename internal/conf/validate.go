package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks that the loaded configuration is internally
// consistent. It collects all problems rather than stopping at the first.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if settings.Detection.Threshold < 0 || settings.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold must be in [0,1], got %v", settings.Detection.Threshold))
	}
	if settings.Detection.LongAudioCutoff <= TargetDuration {
		errs = append(errs, fmt.Errorf("detection.longaudiocutoff must exceed the %vs analysis window, got %v",
			TargetDuration, settings.Detection.LongAudioCutoff))
	}

	if settings.Localization.SpeedOfSound <= 0 {
		errs = append(errs, fmt.Errorf("localization.speedofsound must be positive, got %v", settings.Localization.SpeedOfSound))
	}
	if settings.Localization.MaxMicSeparation <= 0 {
		errs = append(errs, fmt.Errorf("localization.maxmicseparation must be positive, got %v", settings.Localization.MaxMicSeparation))
	}
	if settings.Localization.PositionBound <= 0 {
		errs = append(errs, fmt.Errorf("localization.positionbound must be positive, got %v", settings.Localization.PositionBound))
	}
	if n := len(settings.Localization.MicPositions); n < MinLocalizationChannels {
		errs = append(errs, fmt.Errorf("localization.micpositions needs at least %d microphones, got %d",
			MinLocalizationChannels, n))
	}

	if settings.Audio.Channels < 1 {
		errs = append(errs, fmt.Errorf("audio.channels must be at least 1, got %d", settings.Audio.Channels))
	}

	if settings.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %v", settings.Monitor.Interval))
	}

	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if settings.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.topic is required when mqtt is enabled"))
		}
	}

	return errors.Join(errs...)
}
