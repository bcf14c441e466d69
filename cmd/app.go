package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/kiesman99/pdfsnap/internal/pdfdoc"
	"github.com/kiesman99/pdfsnap/internal/raster"
	"github.com/kiesman99/pdfsnap/internal/snapshot"
	"github.com/kiesman99/pdfsnap/internal/source"
	"github.com/kiesman99/pdfsnap/internal/storage"
)

// app holds the collaborators shared by the CLI and the server.
type app struct {
	generator *snapshot.Generator
	store     *storage.Store
	outputDir string
	renderer  raster.Renderer
	logger    *slog.Logger
}

func newApp(logOutput io.Writer) (*app, error) {
	logger := setupLogging(logOutput, viper.GetString("log-level"))
	slog.SetDefault(logger)

	headers, err := parseHeaders(viper.GetStringSlice("header"))
	if err != nil {
		return nil, err
	}

	renderer, err := raster.New(viper.GetString("renderer"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	outputDir := viper.GetString("output-dir")
	if outputDir == "" {
		outputDir = storage.DefaultDir()
	}

	store := storage.New(nil)
	generator := snapshot.New(snapshot.Config{
		Source:    source.NewFetcher(viper.GetString("user-agent"), headers),
		Documents: snapshot.OpenerFunc(openDocument),
		Renderer:  renderer,
		Store:     store,
		Paths: snapshot.PathResolver{
			Dir:    outputDir,
			Prefix: viper.GetString("prefix"),
		},
		Workers: viper.GetInt("workers"),
		Logger:  logger,
	})

	logger.Debug("initialized", "renderer", viper.GetString("renderer"), "output_dir", outputDir)

	return &app{
		generator: generator,
		store:     store,
		outputDir: outputDir,
		renderer:  renderer,
		logger:    logger,
	}, nil
}

// Close releases the renderer.
func (a *app) Close() error {
	return a.renderer.Close()
}

func openDocument(path string) (snapshot.Document, error) {
	doc, err := pdfdoc.Open(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// setupLogging configures the application logger
func setupLogging(w io.Writer, logLevel string) *slog.Logger {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
