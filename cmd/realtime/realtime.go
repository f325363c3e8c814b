// Package realtime implements the command running headless realtime
// monitoring.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/monitor"
	"github.com/dronewatch/dronewatch-go/internal/mqtt"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

// Command creates the realtime monitoring command.
func Command(settings *conf.Settings) *cobra.Command {
	var listDevices bool

	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Monitor audio in realtime",
		Long:  "Continuously analyze captured audio for drone signatures and print detections as JSON lines.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listDevices {
				return printDevices()
			}
			return run(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Audio.Source, "source", settings.Audio.Source, "Audio capture source, empty for system default")
	cmd.Flags().BoolVar(&settings.Monitor.Simulate, "simulate", settings.Monitor.Simulate, "Use a synthetic audio source instead of a capture device")
	cmd.Flags().BoolVar(&listDevices, "list-devices", false, "List capture devices and exit")
	return cmd
}

func printDevices() error {
	devices, err := myaudio.ListAudioSources()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%d: %s\n", d.Index, d.Name)
	}
	return nil
}

func run(settings *conf.Settings) error {
	classifier, err := droneml.NewDroneNet(settings)
	if err != nil {
		return err
	}
	defer func() { _ = classifier.Close() }()

	orchestrator := analysis.NewOrchestrator(settings, classifier)

	var source monitor.Source
	if settings.Monitor.Simulate {
		source = monitor.NewSimulatedSource()
	} else {
		capture, err := myaudio.StartCapture(settings)
		if err != nil {
			return err
		}
		defer capture.Stop()
		source = capture.Buffer
	}

	controller := monitor.NewController(settings, orchestrator, source)
	controller.AddSink(printDetection)
	wireMQTT(settings, controller)

	if err := controller.Start(); err != nil {
		return err
	}
	defer controller.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logging.Info("shutting down")
	return nil
}

func printDetection(result *analysis.DetectionResult) {
	line, err := json.Marshal(result)
	if err != nil {
		logging.Error("failed to encode detection", "error", err)
		return
	}
	fmt.Fprintln(os.Stdout, string(line))
}

func wireMQTT(settings *conf.Settings, controller *monitor.Controller) {
	if !settings.MQTT.Enabled {
		return
	}
	client := mqtt.NewClient(settings)

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		logging.Warn("MQTT connect failed, detections will not be published", "error", err)
	}

	controller.AddSink(func(result *analysis.DetectionResult) {
		publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.PublishDetection(publishCtx, result); err != nil {
			logging.Warn("MQTT publish failed", "error", err)
		}
	})
}
