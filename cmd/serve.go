package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/pdfsnap/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the PDF snapshot API",
	Long: `Start an HTTP server that provides a REST API for rendering PDF pages.

Written images are stored in the output directory and can be downloaded
through the images endpoint.

Examples:
  # Start server on default port 8080
  pdfsnap serve

  # Start server on custom port
  pdfsnap serve --port 3000

  # Start server with custom bind address
  pdfsnap serve --bind 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "request timeout")
	serveCmd.Flags().Bool("allow-output-paths", false, "let clients choose output locations")
	serveCmd.Flags().Bool("allow-local-sources", false, "let clients render local paths and file:// URLs")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.allow-output-paths", serveCmd.Flags().Lookup("allow-output-paths"))
	viper.BindPFlag("server.allow-local-sources", serveCmd.Flags().Lookup("allow-local-sources"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	apiServer := server.NewServer(server.Config{
		Version:           Version,
		Snapshots:         a.generator,
		Images:            a.store,
		ImageDir:          a.outputDir,
		AllowOutputPaths:  viper.GetBool("server.allow-output-paths"),
		AllowLocalSources: viper.GetBool("server.allow-local-sources"),
		Logger:            a.logger,
	})

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		a.logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("server shutdown error", "error", err)
		}
	}()

	a.logger.Info("starting pdfsnap server",
		"addr", addr,
		"health", fmt.Sprintf("http://%s%s/health", addr, server.BaseURL),
		"snapshot", fmt.Sprintf("http://%s%s/snapshot", addr, server.BaseURL),
		"images", a.outputDir)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
