// Package container defines the contracts of layer containers: the read-only
// source kind and the append-only destination kind.
package container

import (
	"context"

	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// WriteOptions are caller supplied passthrough parameters for the geometry
// write path. Keys are case-insensitive option names.
type WriteOptions map[string]string

// Lister enumerates the layers of a container.
// Implementations open and close the container inside the call.
type Lister interface {
	// ListLayers returns layer names in the container's native order.
	// Fails with a CONTAINER_UNREADABLE error if path is not a valid container.
	ListLayers(ctx context.Context, path string) ([]string, error)
}

// Reader reads whole layers out of a container.
type Reader interface {
	Lister

	// ReadLayer materializes every record of the named layer.
	ReadLayer(ctx context.Context, path, name string) (*types.Layer, error)
}

// Writer appends layers to a container, creating the container and the
// layer when absent.
type Writer interface {
	Lister

	// WriteAttributes appends a layer that has no geometry column.
	WriteAttributes(ctx context.Context, path string, layer *types.Layer) error

	// WriteFeatures appends a geometry-bearing layer, applying opts.
	WriteFeatures(ctx context.Context, path string, layer *types.Layer, opts WriteOptions) error
}

// OptionValidator is implemented by writers that can check write options
// before any container is touched.
type OptionValidator interface {
	ValidateOptions(opts WriteOptions) error
}

// Exister is implemented by containers that can tell whether a path holds
// a container without fully opening it.
type Exister interface {
	Exists(path string) bool
}
