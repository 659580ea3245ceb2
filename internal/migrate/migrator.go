package migrate

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// Report summarizes a migration run. A failed run returns the report of the
// layers completed before the failure.
type Report struct {
	RunID       string
	Source      string
	Destination string
	StartedAt   time.Time
	FinishedAt  time.Time
	Layers      []LayerResult
}

// Converted returns the names of converted layers in transfer order.
func (r *Report) Converted() []string {
	return r.names(OutcomeConverted)
}

// Skipped returns the names of skipped layers in transfer order.
func (r *Report) Skipped() []string {
	return r.names(OutcomeSkipped)
}

// Records returns the number of records written during the run.
func (r *Report) Records() int {
	n := 0
	for _, l := range r.Layers {
		n += l.Records
	}
	return n
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) names(o Outcome) []string {
	var out []string
	for _, l := range r.Layers {
		if l.Outcome == o {
			out = append(out, l.Layer)
		}
	}
	return out
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithObserver sets the progress and logging collaborator.
func WithObserver(o Observer) Option {
	return func(m *Migrator) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClock sets the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) {
		m.now = now
	}
}

// Migrator runs migrations from a source container kind to a destination
// container kind. It holds no per-run state and may be reused.
type Migrator struct {
	source   container.Reader
	dest     container.Writer
	observer Observer
	now      func() time.Time
}

// New creates a migrator reading from source and writing to dest.
func New(source container.Reader, dest container.Writer, opts ...Option) *Migrator {
	m := &Migrator{
		source:   source,
		dest:     dest,
		observer: NopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate runs the request through validate, reset, enumerate and transfer.
// Layers are processed one at a time in the source's native order. The first
// fatal error stops the run, is passed to the observer and is returned;
// layers written before it remain in the destination.
func (m *Migrator) Migrate(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		Source:      req.Source,
		Destination: req.Destination,
		StartedAt:   m.now(),
	}
	finish := func(err error) (*Report, error) {
		report.FinishedAt = m.now()
		if err != nil {
			m.observer.Failed(err)
		}
		return report, err
	}

	// Validate: nothing in the destination is touched before this passes.
	sourceLayers, err := m.validate(ctx, req)
	if err != nil {
		return finish(err)
	}

	// Reset
	if err := resetWith(m.remover(), req.Destination, req.Overwrite); err != nil {
		return finish(err)
	}

	// Enumerate
	existing := NewLayerSet()
	if !req.Overwrite && m.destExists(req.Destination) {
		names, err := m.dest.ListLayers(ctx, req.Destination)
		if err != nil {
			return finish(err)
		}
		for _, n := range names {
			existing.Add(n)
		}
	}

	// Transfer
	m.observer.Started(report.RunID, len(sourceLayers))
	conv := NewConverter(m.source, m.dest, m.observer)
	for i, name := range sourceLayers {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		// A layer written in this run is in the destination now, so a
		// repeated source name is skipped even when overwriting.
		overwrite := req.Overwrite && !existing.Has(name)
		result, err := conv.ConvertLayer(ctx, name, req.Source, req.Destination, overwrite, existing, req.WriteOptions)
		if err != nil {
			return finish(err)
		}
		result.Index = i + 1
		result.Total = len(sourceLayers)
		existing.Add(name)
		report.Layers = append(report.Layers, result)
		m.observer.LayerDone(result)
	}

	return finish(nil)
}

// validate checks the request, the write options and the source container
// and returns the source layer listing.
func (m *Migrator) validate(ctx context.Context, req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if v, ok := m.dest.(container.OptionValidator); ok {
		if err := v.ValidateOptions(req.WriteOptions); err != nil {
			return nil, err
		}
	}

	if e, ok := m.source.(container.Exister); ok && !e.Exists(req.Source) {
		return nil, apperrors.NewSourceNotFound(req.Source, nil)
	}
	names, err := m.source.ListLayers(ctx, req.Source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperrors.NewSourceNotFound(req.Source, err)
	}
	return names, nil
}

func (m *Migrator) remover() Remover {
	if r, ok := m.dest.(Remover); ok {
		return r
	}
	return fileRemover{}
}

func (m *Migrator) destExists(path string) bool {
	if e, ok := m.dest.(container.Exister); ok {
		return e.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}
