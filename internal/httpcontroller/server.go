// Package httpcontroller exposes the detection pipeline over HTTP: file
// upload endpoints, monitoring lifecycle, a websocket event stream and
// prometheus metrics.
package httpcontroller

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/logging"
	"github.com/dronewatch/dronewatch-go/internal/monitor"
	"github.com/dronewatch/dronewatch-go/internal/observability"
)

func getLogger() *slog.Logger {
	if l := logging.ForService("httpcontroller"); l != nil {
		return l
	}
	return slog.Default()
}

// Server wires the echo router to the detection pipeline.
type Server struct {
	Echo         *echo.Echo
	Settings     *conf.Settings
	Orchestrator *analysis.Orchestrator
	Monitor      *monitor.Controller
	Hub          *Hub

	webLogger      *slog.Logger
	webLoggerClose func() error
}

// New builds the server and registers all routes. The monitor controller may
// be nil when realtime monitoring is not part of the deployment; the
// monitoring routes then report 503.
func New(settings *conf.Settings, orchestrator *analysis.Orchestrator, monitorCtl *monitor.Controller) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:         e,
		Settings:     settings,
		Orchestrator: orchestrator,
		Monitor:      monitorCtl,
		Hub:          NewHub(),
	}
	s.initLogger()

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	s.registerRoutes()

	if monitorCtl != nil {
		monitorCtl.AddSink(func(result *analysis.DetectionResult) {
			s.Hub.Broadcast(result)
		})
	}
	return s
}

// initLogger opens the rotating request log file when one is configured.
// Failure to open it falls back to the default structured output.
func (s *Server) initLogger() {
	if s.Settings.Web.LogPath == "" {
		return
	}
	webLogger, closeFunc, err := logging.NewFileLogger(s.Settings.Web.LogPath, "web", slog.LevelInfo)
	if err != nil {
		getLogger().Warn("web file logger unavailable, using default output",
			"path", s.Settings.Web.LogPath, "error", err)
		return
	}
	s.webLogger = webLogger
	s.webLoggerClose = closeFunc
}

func (s *Server) logger() *slog.Logger {
	if s.webLogger != nil {
		return s.webLogger
	}
	return getLogger()
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger().Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds())
			return nil
		},
	})
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(observability.Handler()))
	s.Echo.GET("/ws/events", s.Hub.HandleWS)

	api := s.Echo.Group("/api/v1")
	api.POST("/detect", s.handleDetect)
	api.POST("/detect-with-localization", s.handleDetectWithLocalization)
	api.POST("/detect-batch", s.handleDetectBatch)
	api.POST("/monitor/start", s.handleMonitorStart)
	api.POST("/monitor/stop", s.handleMonitorStop)
	api.GET("/monitor/status", s.handleMonitorStatus)
}

// Start serves on the configured port and blocks until shutdown.
func (s *Server) Start() error {
	addr := ":" + s.Settings.Web.Port
	getLogger().Info("http server listening", "addr", addr)
	return s.Echo.Start(addr)
}

// Shutdown stops the server, the websocket hub and, when owned, the
// monitoring loop.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	s.Hub.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := s.Echo.Shutdown(shutdownCtx)

	if s.webLoggerClose != nil {
		if closeErr := s.webLoggerClose(); closeErr != nil {
			getLogger().Warn("closing web log file failed", "error", closeErr)
		}
	}
	return err
}
