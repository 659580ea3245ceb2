package verify

import (
	"context"
	"fmt"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// Result is the outcome of comparing one layer.
type Result struct {
	Layer         string
	SourceRecords int
	DestRecords   int
	Source        Fingerprint
	Dest          Fingerprint
	// Missing is set when the layer is absent from the destination.
	Missing bool
}

// Match reports whether both sides hold the same content.
func (r Result) Match() bool {
	return !r.Missing && r.SourceRecords == r.DestRecords && r.Source == r.Dest
}

// Compare reads each named layer from both containers and compares record
// counts and fingerprints. With no names, every source layer is compared.
//
// All layers are compared even after a mismatch. If any layer differs the
// returned error is VERIFY_MISMATCH naming the first one.
func Compare(ctx context.Context, src container.Reader, srcPath string, dst container.Reader, dstPath string, layers []string) ([]Result, error) {
	if len(layers) == 0 {
		names, err := src.ListLayers(ctx, srcPath)
		if err != nil {
			return nil, err
		}
		layers = names
	}

	dstNames, err := dst.ListLayers(ctx, dstPath)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(dstNames))
	for _, n := range dstNames {
		present[n] = true
	}

	results := make([]Result, 0, len(layers))
	var mismatched []string
	seen := make(map[string]bool, len(layers))
	for _, name := range layers {
		if seen[name] {
			continue
		}
		seen[name] = true

		s, err := src.ReadLayer(ctx, srcPath, name)
		if err != nil {
			return results, fmt.Errorf("verify: read source layer %q: %w", name, err)
		}
		res := Result{Layer: name, SourceRecords: len(s.Records), Source: Of(s)}

		if !present[name] {
			res.Missing = true
		} else {
			d, err := dst.ReadLayer(ctx, dstPath, name)
			if err != nil {
				return results, fmt.Errorf("verify: read destination layer %q: %w", name, err)
			}
			res.DestRecords = len(d.Records)
			res.Dest = Of(d)
		}

		if !res.Match() {
			mismatched = append(mismatched, name)
		}
		results = append(results, res)
	}

	if len(mismatched) > 0 {
		r := find(results, mismatched[0])
		return results, apperrors.NewVerifyError(r.Layer, describe(r)).
			WithDetails(map[string]interface{}{"mismatched": mismatched})
	}
	return results, nil
}

func find(results []Result, name string) Result {
	for _, r := range results {
		if r.Layer == name {
			return r
		}
	}
	return Result{Layer: name}
}

func describe(r Result) string {
	switch {
	case r.Missing:
		return "missing from destination"
	case r.SourceRecords != r.DestRecords:
		return fmt.Sprintf("record count %d != %d", r.SourceRecords, r.DestRecords)
	default:
		return fmt.Sprintf("fingerprint %s != %s", r.Source, r.Dest)
	}
}
