package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/pdfsnap/internal/snapshot"
)

// Version is reported by the health endpoint and the User-Agent header.
const Version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pdfsnap [url]",
	Short: "Render a PDF page into images, split into tiles if needed",
	Long: `pdfsnap renders a single page of a PDF document into a JPEG, PNG or TIFF
image. When a maximum edge is given, pages that render larger than that edge
are split into a grid of equally sized tiles instead.

The result is printed as JSON: either a single image or the list of tiles
with their position in the full rendered page.

Examples:
  # Render the first page at twice its natural size
  pdfsnap --url paper.pdf

  # Render page 3 at 300 DPI as PNG
  pdfsnap --url paper.pdf --page 2 --dpi 300 -o page3.png

  # Split a large page into tiles of at most 1024 pixels
  pdfsnap --url https://example.com/plan.pdf --scale 4 --max 1024 --output-path ./tiles

  # Fit the page into 1024 pixels instead of splitting it
  pdfsnap --url plan.pdf --scale 4 --max 1024 --disable-split

  # Start HTTP server
  pdfsnap serve --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no document is given, show help
		if len(args) == 0 && !viper.IsSet("url") {
			return cmd.Help()
		}
		return runSnapshot(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pdfsnap.yaml)")
	rootCmd.PersistentFlags().String("renderer", "pdfium", "rasterizer backend (pdfium|fitz)")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for generated file names (default $HOME/Documents)")
	rootCmd.PersistentFlags().String("prefix", snapshot.DefaultPrefix, "prefix of generated file names")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent tile encoders (default: number of CPUs)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("user-agent", "pdfsnap/"+Version, "HTTP User-Agent header for document downloads")
	rootCmd.PersistentFlags().StringSlice("header", nil, "extra HTTP header for document downloads as 'Key: Value'")

	viper.BindPFlag("renderer", rootCmd.PersistentFlags().Lookup("renderer"))
	viper.BindPFlag("output-dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("user-agent", rootCmd.PersistentFlags().Lookup("user-agent"))
	viper.BindPFlag("header", rootCmd.PersistentFlags().Lookup("header"))

	// Document options
	rootCmd.Flags().StringP("url", "u", "", "PDF path, file:// or http(s):// URL")
	rootCmd.Flags().IntP("page", "p", 0, "zero-based page index")

	// Render options
	rootCmd.Flags().Float64P("scale", "s", snapshot.DefaultScale, "pixels per PDF point")
	rootCmd.Flags().Float64("dpi", 0, "render resolution, used when --scale is not given")
	rootCmd.Flags().Float64P("max", "m", 0, "maximum tile edge in pixels (0: no limit)")
	rootCmd.Flags().Bool("disable-split", false, "fit the page into --max instead of splitting it")
	rootCmd.Flags().Bool("require-tiles", false, "fail when no tile could be written")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file or file:// URL")
	rootCmd.Flags().String("output-path", "", "output directory")
	rootCmd.Flags().String("output-filename", "", "output file name inside --output-path")
	rootCmd.Flags().StringP("format", "f", "", "output format (jpeg|png|tiff, default from output extension or jpeg)")
	rootCmd.Flags().IntP("quality", "q", 100, "JPEG quality (1-100)")

	// Bind flags to viper for root command
	viper.BindPFlag("url", rootCmd.Flags().Lookup("url"))
	viper.BindPFlag("page", rootCmd.Flags().Lookup("page"))
	viper.BindPFlag("scale", rootCmd.Flags().Lookup("scale"))
	viper.BindPFlag("dpi", rootCmd.Flags().Lookup("dpi"))
	viper.BindPFlag("max", rootCmd.Flags().Lookup("max"))
	viper.BindPFlag("disable-split", rootCmd.Flags().Lookup("disable-split"))
	viper.BindPFlag("require-tiles", rootCmd.Flags().Lookup("require-tiles"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("output-path", rootCmd.Flags().Lookup("output-path"))
	viper.BindPFlag("output-filename", rootCmd.Flags().Lookup("output-filename"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("quality", rootCmd.Flags().Lookup("quality"))
}

// initConfig reads in .env, config file and ENV variables if set.
func initConfig() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pdfsnap" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pdfsnap")
	}

	// PDFSNAP_OUTPUT_DIR, PDFSNAP_SERVER_PORT, ...
	viper.SetEnvPrefix("pdfsnap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	opts := snapshotOptions(args)

	// Everything past this point is a runtime failure, not a usage error
	cmd.SilenceUsage = true

	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	env, err := a.generator.Generate(cmd.Context(), opts)
	if err != nil {
		if kind := snapshot.KindOf(err); kind != "" {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return err
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// snapshotOptions collects the options that were explicitly set, leaving the
// defaults to snapshot.Options.Resolve.
func snapshotOptions(args []string) snapshot.Options {
	opts := snapshot.Options{
		URL:            viper.GetString("url"),
		Output:         viper.GetString("output"),
		OutputPath:     viper.GetString("output-path"),
		OutputFilename: viper.GetString("output-filename"),
		Format:         viper.GetString("format"),
		Page:           optional("page", viper.GetInt),
		Scale:          optional("scale", viper.GetFloat64),
		DPI:            optional("dpi", viper.GetFloat64),
		Max:            optional("max", viper.GetFloat64),
		DisableSplit:   optional("disable-split", viper.GetBool),
		Quality:        optional("quality", viper.GetInt),
		RequireTiles:   optional("require-tiles", viper.GetBool),
	}
	if len(args) > 0 {
		opts.URL = args[0]
	}
	return opts
}

func optional[T any](key string, get func(string) T) *T {
	if !viper.IsSet(key) {
		return nil
	}
	v := get(key)
	return &v
}

// parseHeaders converts 'Key: Value' pairs into a header map
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}
