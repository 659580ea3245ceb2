// Package cli implements the fgdb2gpkg command line.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/app"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// newApp builds the application for a command. Tests replace it to inject
// containers.
var newApp = func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// rootCmd is the root command for fgdb2gpkg.
var rootCmd = &cobra.Command{
	Use:     "fgdb2gpkg",
	Version: "dev",
	Short:   "Convert Esri File GeoDatabases to OGC GeoPackages",
	Long: `fgdb2gpkg copies every feature class and table of an Esri File GeoDatabase
into an OGC GeoPackage, one layer at a time.

By default the destination GeoPackage is replaced. Use --overwrite=false to
append into an existing GeoPackage; layers it already holds are skipped with a
warning.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// SetVersion sets the version printed by --version.
func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json, logfmt")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(verifyCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a migration stops before its next layer and reports the partial
// result.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves configuration from defaults, the config file, the
// environment and finally command line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// setup loads configuration and builds the logger and application.
func setup(cmd *cobra.Command, apply func(cfg *config.Config) error) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := app.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, logger)
}
