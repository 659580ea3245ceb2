// Package app wires configuration, containers, the migration driver,
// verification and publishing into the operations the CLI exposes.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/config"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/fgdb"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/gpkg"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/migrate"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/storage"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/verify"
)

// GeoPackageExt is the file extension that selects the GeoPackage container.
const GeoPackageExt = ".gpkg"

// App holds the shared resources of one CLI invocation.
type App struct {
	cfg    *config.Config
	logger *log.Logger

	source    container.Reader
	dest      *gpkg.Store
	publisher *storage.Publisher
}

// Option configures an App.
type Option func(*App)

// WithSource replaces the File GeoDatabase reader.
func WithSource(r container.Reader) Option {
	return func(a *App) {
		a.source = r
	}
}

// WithPublisher replaces the publisher built from configuration.
func WithPublisher(p *storage.Publisher) Option {
	return func(a *App) {
		a.publisher = p
	}
}

// NewLogger creates the structured logger described by cfg.
func NewLogger(w io.Writer, cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := log.Options{
		Prefix:          "fgdb2gpkg",
		Level:           level,
		ReportTimestamp: true,
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts), nil
}

// New creates an App with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "fgdb2gpkg"})
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		dest:   gpkg.NewStore(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.source == nil {
		a.source = fgdb.NewReader()
	}

	if a.publisher == nil && cfg.Publish.Enabled {
		if err := a.initPublisher(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
	}
	return a, nil
}

// initPublisher builds the object storage named by the publish config.
func (a *App) initPublisher(ctx context.Context) error {
	var (
		store storage.ObjectStorage
		err   error
	)

	pc := a.cfg.Publish
	switch pc.Type {
	case "local":
		store, err = storage.NewLocalStorage(pc.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if pc.S3.Region != "" {
			s3Cfg.Region = pc.S3.Region
		}
		s3Cfg.Endpoint = pc.S3.Endpoint
		s3Cfg.UsePathStyle = pc.S3.UsePathStyle
		if pc.S3.PartSizeMB > 0 {
			s3Cfg.PartSize = int64(pc.S3.PartSizeMB) * 1024 * 1024
		}
		store, err = storage.NewS3Storage(ctx, pc.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported publish type: %s", pc.Type)
	}
	if err != nil {
		return err
	}

	a.publisher = storage.NewPublisher(store, pc.Prefix, pc.Replace)
	return nil
}

// Result is the outcome of Convert.
type Result struct {
	Report       *migrate.Report
	Verification []verify.Result
	Receipt      *storage.Receipt
}

// Convert migrates every layer of the File GeoDatabase at src into the
// GeoPackage at dst, then verifies and publishes it when configured.
// Verification covers the layers converted in this run only.
func (a *App) Convert(ctx context.Context, src, dst string) (*Result, error) {
	req := migrate.Request{
		Source:       src,
		Destination:  dst,
		Overwrite:    a.cfg.Overwrite,
		WriteOptions: container.WriteOptions(a.cfg.WriteOptions),
	}

	m := migrate.New(a.source, a.dest, migrate.WithObserver(NewLogObserver(a.logger)))
	report, err := m.Migrate(ctx, req)
	res := &Result{Report: report}
	if err != nil {
		return res, err
	}
	a.logger.Info("migration complete",
		"run", report.RunID,
		"converted", len(report.Converted()),
		"skipped", len(report.Skipped()),
		"records", report.Records(),
		"duration", report.Duration(),
	)

	if a.cfg.Verify {
		converted := report.Converted()
		if len(converted) > 0 {
			res.Verification, err = a.compare(ctx, src, dst, converted)
			if err != nil {
				return res, err
			}
		}
	}

	if a.publisher != nil {
		receipt, err := a.publisher.Publish(ctx, dst)
		if err != nil {
			a.logger.Error("publish failed", "path", dst, "err", err)
			return res, err
		}
		a.logger.Info("published", "key", receipt.Key, "etag", receipt.ETag, "bytes", receipt.Size)
		res.Receipt = receipt
	}
	return res, nil
}

// Verify compares every layer of the File GeoDatabase at src with the
// GeoPackage at dst.
func (a *App) Verify(ctx context.Context, src, dst string) ([]verify.Result, error) {
	return a.compare(ctx, src, dst, nil)
}

func (a *App) compare(ctx context.Context, src, dst string, layers []string) ([]verify.Result, error) {
	results, err := verify.Compare(ctx, a.source, src, a.dest, dst, layers)
	for _, r := range results {
		if r.Match() {
			a.logger.Debug("layer verified", "layer", r.Layer, "records", r.SourceRecords, "fingerprint", r.Source)
			continue
		}
		a.logger.Warn("layer differs", "layer", r.Layer,
			"source_records", r.SourceRecords, "dest_records", r.DestRecords, "missing", r.Missing)
	}
	if err == nil {
		a.logger.Info("verification passed", "layers", len(results))
	}
	return results, err
}

// Layers lists the layers of a File GeoDatabase or, for a .gpkg path, a
// GeoPackage.
func (a *App) Layers(ctx context.Context, path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), GeoPackageExt) {
		return a.dest.ListLayers(ctx, path)
	}
	return a.source.ListLayers(ctx, path)
}
