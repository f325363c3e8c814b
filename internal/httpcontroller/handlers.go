package httpcontroller

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dronewatch/dronewatch-go/internal/analysis"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{
		"error":  msg,
		"status": "error",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":                 "healthy",
		"model_loaded":           s.Orchestrator.Classifier != nil,
		"localization_supported": true,
		"message":                "Drone Detection & Localization API is running",
	})
}

// detectOptions reads the optional threshold and analyze_long form fields.
func detectOptions(c echo.Context) (analysis.DetectOptions, error) {
	opts := analysis.DetectOptions{}
	if raw := c.FormValue("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "invalid threshold")
		}
		opts.Threshold = threshold
	}
	opts.AnalyzeLong = c.FormValue("analyze_long") == "true"
	return opts, nil
}

func decodeUpload(file *multipart.FileHeader) (*myaudio.Waveform, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return myaudio.DecodeWAV(src)
}

func (s *Server) handleDetect(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "No file provided")
	}
	opts, err := detectOptions(c)
	if err != nil {
		return err
	}
	// The plain detect endpoint is always a single-window classification.
	opts.AnalyzeLong = false

	w, err := decodeUpload(file)
	if err != nil {
		getLogger().Warn("failed to decode upload", "filename", file.Filename, "error", err)
		return errorJSON(c, http.StatusBadRequest, "could not decode audio file")
	}

	result, err := s.Orchestrator.Detect(w, opts)
	if err != nil {
		getLogger().Error("detection failed", "filename", file.Filename, "error", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleDetectWithLocalization(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "No file provided")
	}
	opts, err := detectOptions(c)
	if err != nil {
		return err
	}

	w, err := decodeUpload(file)
	if err != nil {
		getLogger().Warn("failed to decode upload", "filename", file.Filename, "error", err)
		return errorJSON(c, http.StatusBadRequest, "could not decode audio file")
	}

	result, err := s.Orchestrator.DetectAndLocalize(w, opts)
	if err != nil {
		getLogger().Error("detection failed", "filename", file.Filename, "error", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// batchEntry is the per-file outcome of a batch call; one bad file never
// fails the whole batch.
type batchEntry struct {
	Filename string                    `json:"filename"`
	Result   *analysis.DetectionResult `json:"result,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

func (s *Server) handleDetectBatch(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "No files provided")
	}
	files := form.File["audio_files"]
	if len(files) == 0 {
		return errorJSON(c, http.StatusBadRequest, "No files provided")
	}

	opts, err := detectOptions(c)
	if err != nil {
		return err
	}

	entries := make([]batchEntry, 0, len(files))
	for _, file := range files {
		entry := batchEntry{Filename: file.Filename}

		w, err := decodeUpload(file)
		if err != nil {
			entry.Error = "could not decode audio file"
			entries = append(entries, entry)
			continue
		}
		result, err := s.Orchestrator.DetectAndLocalize(w, opts)
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			continue
		}
		entry.Result = result
		entries = append(entries, entry)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total_files": len(files),
		"results":     entries,
	})
}

func (s *Server) handleMonitorStart(c echo.Context) error {
	if s.Monitor == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "monitoring not available")
	}
	if err := s.Monitor.Start(); err != nil {
		return errorJSON(c, http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "started",
		"message": "Real-time monitoring started",
	})
}

func (s *Server) handleMonitorStop(c echo.Context) error {
	if s.Monitor == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "monitoring not available")
	}
	s.Monitor.Stop()
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "stopped",
		"message": "Real-time monitoring stopped",
	})
}

func (s *Server) handleMonitorStatus(c echo.Context) error {
	if s.Monitor == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "monitoring not available")
	}
	status := s.Monitor.Status()
	return c.JSON(http.StatusOK, map[string]any{
		"running":          status.Running,
		"started_at":       status.StartedAt,
		"interval_seconds": status.Interval,
		"iterations":       status.Iterations,
		"detections":       status.Detections,
		"subscribers":      s.Hub.SubscriberCount(),
	})
}
