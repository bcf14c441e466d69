package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kiesman99/pdfsnap/internal/api"
	"github.com/kiesman99/pdfsnap/internal/imgcodec"
	"github.com/kiesman99/pdfsnap/internal/snapshot"
	"github.com/kiesman99/pdfsnap/internal/source"
)

// Snapshotter renders snapshot requests.
type Snapshotter interface {
	Generate(ctx context.Context, opts snapshot.Options) (*snapshot.Envelope, error)
}

// ImageReader reads written images back.
type ImageReader interface {
	Read(path string) ([]byte, error)
	Exists(path string) bool
}

// Config configures a Server.
type Config struct {
	Version   string
	Snapshots Snapshotter
	Images    ImageReader
	// ImageDir is the directory served by the image endpoint.
	ImageDir string
	// AllowOutputPaths lets clients choose where images are written.
	AllowOutputPaths bool
	// AllowLocalSources lets clients render files from the server's
	// filesystem. Otherwise only http(s) URLs are accepted.
	AllowLocalSources bool
	Logger            *slog.Logger
}

// Server implements the ServerInterface from the generated API
type Server struct {
	startTime         time.Time
	version           string
	snapshots         Snapshotter
	images            ImageReader
	imageDir          string
	allowOutputPaths  bool
	allowLocalSources bool
	logger            *slog.Logger
}

// NewServer creates a new server instance
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		startTime:         time.Now(),
		version:           cfg.Version,
		snapshots:         cfg.Snapshots,
		images:            cfg.Images,
		imageDir:          cfg.ImageDir,
		allowOutputPaths:  cfg.AllowOutputPaths,
		allowLocalSources: cfg.AllowLocalSources,
		logger:            logger,
	}
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// CreateSnapshot renders the requested page and describes the written files
func (s *Server) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()
	w.Header().Set("X-Request-ID", requestID)

	var req api.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	if !s.allowOutputPaths && (req.Output != nil || req.OutputPath != nil || req.OutputFilename != nil) {
		s.writeErrorResponse(w, http.StatusBadRequest, string(snapshot.KindConfigInvalid),
			"This server does not accept output locations", &requestID, nil)
		return
	}

	if !s.allowLocalSources && strings.TrimSpace(req.Url) != "" && source.IsLocal(req.Url) {
		s.writeErrorResponse(w, http.StatusBadRequest, string(snapshot.KindConfigInvalid),
			"This server only renders http(s) URLs", &requestID, nil)
		return
	}

	env, err := s.snapshots.Generate(r.Context(), toOptions(&req))
	if err != nil {
		s.handleSnapshotError(w, err, &requestID)
		return
	}

	s.writeJSON(w, http.StatusOK, toResponse(env))
}

// GetImage serves a written image by file name
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_NAME",
			"Image name must be a plain file name", nil, nil)
		return
	}

	format, err := imgcodec.ParseFormat(filepath.Ext(name))
	if err != nil || filepath.Ext(name) == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_NAME",
			"Image name must have an image extension", nil, nil)
		return
	}

	path := filepath.Join(s.imageDir, name)
	if !s.images.Exists(path) {
		s.writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND",
			"Image not found", nil, nil)
		return
	}

	data, err := s.images.Read(path)
	if err != nil {
		s.logger.Error("failed to read image", "path", path, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", nil, nil)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// toOptions converts an API request to snapshot options
func toOptions(req *api.SnapshotRequest) snapshot.Options {
	opts := snapshot.Options{
		URL:          req.Url,
		Page:         req.Page,
		Scale:        req.Scale,
		DPI:          req.Dpi,
		Max:          req.Max,
		DisableSplit: req.DisableSplit,
		Quality:      req.Quality,
		RequireTiles: req.RequireTiles,
	}
	if req.Output != nil {
		opts.Output = *req.Output
	}
	if req.OutputPath != nil {
		opts.OutputPath = *req.OutputPath
	}
	if req.OutputFilename != nil {
		opts.OutputFilename = *req.OutputFilename
	}
	if req.Format != nil {
		opts.Format = string(*req.Format)
	}
	return opts
}

// toResponse converts a snapshot result to its API shape
func toResponse(env *snapshot.Envelope) api.SnapshotResponse {
	if env.Single != nil {
		return api.SnapshotResponse{
			Uri:    &env.Single.URI,
			Width:  &env.Single.Width,
			Height: &env.Single.Height,
		}
	}

	images := make([]api.TileImage, len(env.Tiled.Images))
	for i, img := range env.Tiled.Images {
		images[i] = api.TileImage{
			Uri:    img.URI,
			X:      img.X,
			Y:      img.Y,
			Width:  img.Width,
			Height: img.Height,
		}
	}
	response := api.SnapshotResponse{
		TotalWidth:  &env.Tiled.TotalWidth,
		TotalHeight: &env.Tiled.TotalHeight,
		Images:      &images,
	}

	if len(env.Tiled.Failures) > 0 {
		failures := make([]api.TileFailure, len(env.Tiled.Failures))
		for i, f := range env.Tiled.Failures {
			failures[i] = api.TileFailure{
				Index:   f.Index,
				Code:    string(f.Code),
				Message: f.Message,
			}
		}
		response.Failures = &failures
	}
	return response
}

// handleSnapshotError maps snapshot failures to HTTP responses
func (s *Server) handleSnapshotError(w http.ResponseWriter, err error, requestID *string) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "RENDER_TIMEOUT",
			"Rendering timed out", requestID, nil)
		return
	}

	var snapErr *snapshot.Error
	if !errors.As(err, &snapErr) {
		s.logger.Error("snapshot failed", "request_id", *requestID, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID, nil)
		return
	}

	status := http.StatusInternalServerError
	switch snapErr.Kind {
	case snapshot.KindConfigMissing, snapshot.KindConfigInvalid:
		status = http.StatusBadRequest
	case snapshot.KindDocumentUnavailable:
		status = http.StatusNotFound
	case snapshot.KindPageOutOfRange:
		status = http.StatusUnprocessableEntity
	}

	var details map[string]interface{}
	if status == http.StatusInternalServerError {
		s.logger.Error("snapshot failed", "request_id", *requestID, "code", snapErr.Kind, "error", err)
	} else if snapErr.Err != nil {
		details = map[string]interface{}{"cause": snapErr.Err.Error()}
	}

	s.writeErrorResponse(w, status, string(snapErr.Kind), snapErr.Message, requestID, details)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return ulid.Make().String()
}
