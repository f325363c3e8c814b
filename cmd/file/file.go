// Package file implements the command analyzing a single audio file.
package file

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

// Command creates the file command for analyzing a single WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	var analyzeLong bool
	var localize bool

	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  "Analyze a single WAV file for drone acoustic signatures and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, args[0], analyzeLong, localize)
		},
	}

	cmd.Flags().BoolVar(&analyzeLong, "analyze-long", true, "Scan long recordings in overlapping windows")
	cmd.Flags().BoolVar(&localize, "localize", true, "Attach a position estimate to positive detections")
	return cmd
}

func run(settings *conf.Settings, path string, analyzeLong, localize bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := myaudio.ReadWAVInfo(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("%s is not a readable WAV file: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "%s: %d Hz, %d channels, %d-bit\n",
		path, info.SampleRate, info.NumChannels, info.BitDepth)

	w, err := myaudio.ReadWAVFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	classifier, err := droneml.NewDroneNet(settings)
	if err != nil {
		return err
	}
	defer func() { _ = classifier.Close() }()

	orchestrator := analysis.NewOrchestrator(settings, classifier)
	opts := analysis.DetectOptions{AnalyzeLong: analyzeLong}

	var result *analysis.DetectionResult
	if localize {
		result, err = orchestrator.DetectAndLocalize(w, opts)
	} else {
		result, err = orchestrator.Detect(w, opts)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
