package migrate

import (
	"context"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// LayerSet is a set of layer names.
type LayerSet map[string]struct{}

// NewLayerSet creates a set holding names.
func NewLayerSet(names ...string) LayerSet {
	s := make(LayerSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Has reports whether name is in the set.
func (s LayerSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name into the set.
func (s LayerSet) Add(name string) {
	s[name] = struct{}{}
}

// Converter moves single layers from a source container to a destination
// container.
type Converter struct {
	source   container.Reader
	dest     container.Writer
	observer Observer
}

// NewConverter creates a layer converter. A nil observer discards warnings.
func NewConverter(source container.Reader, dest container.Writer, observer Observer) *Converter {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Converter{source: source, dest: dest, observer: observer}
}

// ConvertLayer transfers the named layer. When overwrite is false and the
// layer is already in existing, nothing is read or written: a
// LAYER_ALREADY_EXISTS warning goes to the observer and the layer is
// reported as skipped.
//
// Otherwise the whole layer is read into memory and appended to the
// destination. Attribute layers go through the attribute writer and never
// receive opts; geometry layers go through the feature writer with opts.
// Read and write failures are returned as CONVERSION_FAILED errors.
func (c *Converter) ConvertLayer(ctx context.Context, name, sourcePath, destPath string, overwrite bool, existing LayerSet, opts container.WriteOptions) (LayerResult, error) {
	result := LayerResult{Layer: name}

	if !overwrite && existing.Has(name) {
		c.observer.Warning(apperrors.NewLayerAlreadyExists(name, destPath))
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	layer, err := c.source.ReadLayer(ctx, sourcePath, name)
	if err != nil {
		return result, apperrors.NewConversionError(name, "failed to read layer from "+sourcePath, err)
	}

	if layer.HasGeometry() {
		err = c.dest.WriteFeatures(ctx, destPath, layer, opts)
	} else {
		err = c.dest.WriteAttributes(ctx, destPath, layer)
	}
	if err != nil {
		return result, apperrors.NewConversionError(name, "failed to write layer to "+destPath, err)
	}

	result.Outcome = OutcomeConverted
	result.Records = len(layer.Records)
	return result, nil
}
