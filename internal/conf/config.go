// Package conf loads and validates application settings from an embedded
// default configuration, an optional on-disk config file and environment
// variables.
package conf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// MicPosition is a 2-D microphone coordinate in meters, in the array's local
// frame.
type MicPosition struct {
	X float64 `yaml:"x" mapstructure:"x"`
	Y float64 `yaml:"y" mapstructure:"y"`
}

// AudioSettings contains settings for audio input.
type AudioSettings struct {
	Source   string // capture device name, empty for default
	Channels int    // channels to open for realtime capture
}

// DetectionSettings contains classifier and segmentation settings.
type DetectionSettings struct {
	ModelPath       string  // path to the TFLite model file
	Threshold       float64 // detection threshold for positive classification
	LongAudioCutoff float64 // seconds above which segmented analysis is used
	Threads         int     // interpreter threads, 0 for all CPUs
	UseXNNPACK      bool    // enable the XNNPACK delegate when available
}

// LocalizationSettings contains microphone geometry and physical bounds.
type LocalizationSettings struct {
	SpeedOfSound     float64       // m/s
	MaxMicSeparation float64       // meters, bounds plausible TDOA magnitudes
	PositionBound    float64       // meters, +/- box for plausible solutions
	DefaultPoint     MicPosition   // substitute for out-of-bounds solutions
	MicPositions     []MicPosition // ordered array geometry, index 0 is reference
}

// MonitorSettings contains realtime monitoring settings.
type MonitorSettings struct {
	Interval float64 // seconds between monitoring iterations
	Simulate bool    // true to synthesize detections instead of capturing audio
}

// MQTTSettings contains settings for MQTT detection publishing.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	ClientID string
	Username string
	Password string
	Retain   bool
}

// WebSettings contains HTTP server settings.
type WebSettings struct {
	Port    string
	LogPath string // rotating request log file, empty disables file logging
}

// Settings is the top-level application configuration.
type Settings struct {
	Debug bool

	Audio        AudioSettings
	Detection    DetectionSettings
	Localization LocalizationSettings
	Monitor      MonitorSettings
	MQTT         MQTTSettings
	Web          WebSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the embedded defaults, an optional
// config.yaml next to the binary or in the user config directory, and
// DRONEWATCH_* environment variables.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling settings: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DRONEWATCH")
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultSettings()

	// The embedded config is the baseline; a file on disk overrides it.
	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := viper.ReadConfig(bytes.NewReader(defaultConfig)); err != nil {
		return fmt.Errorf("error loading embedded config: %w", err)
	}

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No user config file, embedded defaults apply.
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return []string{"."}, nil //nolint:nilerr // fall back to cwd only
	}
	return []string{
		".",
		filepath.Join(configDir, "dronewatch"),
	}, nil
}

// Setting returns the loaded settings instance, loading defaults on first
// use.
func Setting() *Settings {
	once.Do(func() {
		settingsMutex.RLock()
		loaded := settingsInstance != nil
		settingsMutex.RUnlock()
		if !loaded {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
