package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveSettings writes the settings as YAML to path, atomically so a crash
// mid-write cannot leave a truncated config behind.
func SaveSettings(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing config: %w", err)
	}
	return nil
}

// MarshalSettings renders the settings as YAML.
func MarshalSettings(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings: %w", err)
	}
	return data, nil
}
