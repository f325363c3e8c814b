// Package serve implements the command running the detection HTTP API.
package serve

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/httpcontroller"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/monitor"
	"github.com/dronewatch/dronewatch-go/internal/mqtt"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection HTTP API",
		Long:  "Serve the detection, localization and monitoring API over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
	cmd.Flags().StringVar(&settings.Web.Port, "port", settings.Web.Port, "HTTP listen port")
	return cmd
}

func run(settings *conf.Settings) error {
	classifier, err := droneml.NewDroneNet(settings)
	if err != nil {
		return err
	}
	defer func() { _ = classifier.Close() }()

	orchestrator := analysis.NewOrchestrator(settings, classifier)

	source, capture := monitoringSource(settings)
	if capture != nil {
		defer capture.Stop()
	}
	controller := monitor.NewController(settings, orchestrator, source)
	wireMQTT(settings, controller)

	server := httpcontroller.New(settings, orchestrator, controller)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// monitoringSource picks the audio source for the monitoring loop: the
// capture device when one can be opened, a synthetic source otherwise.
func monitoringSource(settings *conf.Settings) (monitor.Source, *myaudio.Capture) {
	if settings.Monitor.Simulate {
		return monitor.NewSimulatedSource(), nil
	}
	capture, err := myaudio.StartCapture(settings)
	if err != nil {
		logging.Warn("audio capture unavailable, monitoring with simulated source", "error", err)
		return monitor.NewSimulatedSource(), nil
	}
	return capture.Buffer, capture
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
