package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{Channels: 3},
		Detection: DetectionSettings{
			ModelPath:       "models/drone_detector.tflite",
			Threshold:       0.70,
			LongAudioCutoff: 10.0,
		},
		Localization: LocalizationSettings{
			SpeedOfSound:     343.0,
			MaxMicSeparation: 2.0,
			PositionBound:    10.0,
			DefaultPoint:     MicPosition{X: 1.0, Y: 1.0},
			MicPositions: []MicPosition{
				{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0, Y: 0.5},
			},
		},
		Monitor: MonitorSettings{Interval: 2.0},
		Web:     WebSettings{Port: "8080"},
	}
}

func TestValidateSettings_Valid(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "threshold_out_of_range",
			mutate:  func(s *Settings) { s.Detection.Threshold = 1.5 },
			wantMsg: "detection.threshold",
		},
		{
			name:    "cutoff_below_window",
			mutate:  func(s *Settings) { s.Detection.LongAudioCutoff = 2.0 },
			wantMsg: "detection.longaudiocutoff",
		},
		{
			name:    "too_few_microphones",
			mutate:  func(s *Settings) { s.Localization.MicPositions = s.Localization.MicPositions[:2] },
			wantMsg: "micpositions",
		},
		{
			name:    "negative_speed_of_sound",
			mutate:  func(s *Settings) { s.Localization.SpeedOfSound = -1 },
			wantMsg: "speedofsound",
		},
		{
			name: "mqtt_enabled_without_broker",
			mutate: func(s *Settings) {
				s.MQTT.Enabled = true
				s.MQTT.Broker = ""
				s.MQTT.Topic = "t"
			},
			wantMsg: "mqtt.broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSaveSettings_WritesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveSettings(validSettings(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "localization:")
	assert.Contains(t, string(data), "micpositions:")
}

func TestLoad_EmbeddedDefaults(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.70, settings.Detection.Threshold, 1e-9)
	assert.InDelta(t, 343.0, settings.Localization.SpeedOfSound, 1e-9)
	assert.Len(t, settings.Localization.MicPositions, 3)
	assert.Equal(t, MicPosition{X: 1.0, Y: 1.0}, settings.Localization.DefaultPoint)
}

func TestSetting_ReturnsLoadedInstance(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)
	assert.Same(t, settings, Setting())
}
