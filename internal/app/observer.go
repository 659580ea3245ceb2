package app

import (
	"fmt"

	"github.com/charmbracelet/log"

	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/migrate"
)

// LogObserver reports migration progress through a structured logger.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver creates an observer logging to logger.
func NewLogObserver(logger *log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Started(runID string, total int) {
	o.logger.Info("migration started", "run", runID, "layers", total)
}

func (o *LogObserver) LayerDone(r migrate.LayerResult) {
	o.logger.Info("layer "+string(r.Outcome),
		"layer", r.Layer,
		"records", r.Records,
		"progress", progress(r.Index, r.Total),
	)
}

func (o *LogObserver) Warning(err error) {
	if apperrors.GetCode(err) == apperrors.CodeLayerAlreadyExists {
		o.logger.Warn("layer already exists, skipping", "layer", apperrors.GetLayer(err))
		return
	}
	o.logger.Warn(err.Error(), "layer", apperrors.GetLayer(err))
}

func (o *LogObserver) Failed(err error) {
	o.logger.Error("migration failed",
		"category", apperrors.GetCategory(err),
		"code", apperrors.GetCode(err),
		"layer", apperrors.GetLayer(err),
		"err", err,
	)
}

func progress(i, total int) string {
	return fmt.Sprintf("%d/%d", i, total)
}

var _ migrate.Observer = (*LogObserver)(nil)
