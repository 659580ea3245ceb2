// Package migrate implements the layer migration driver: it validates a
// request, resets the destination, enumerates source layers and transfers
// them one at a time into the destination container.
package migrate

import (
	"strings"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// Request describes one migration run. It is not modified during the run.
type Request struct {
	// Source is the path of the source container.
	Source string

	// Destination is the path of the destination container.
	Destination string

	// Overwrite deletes the destination before the run when true. When
	// false, layers already present in the destination are skipped.
	Overwrite bool

	// WriteOptions are forwarded to the geometry write path.
	WriteOptions container.WriteOptions
}

// NewRequest creates a request with overwrite enabled and no write options.
func NewRequest(source, destination string) Request {
	return Request{
		Source:      source,
		Destination: destination,
		Overwrite:   true,
	}
}

// Validate checks that both container paths are present.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(r.Destination) == "" {
		missing = append(missing, "destination")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError(apperrors.CodeInvalidRequest,
			"missing required path: "+strings.Join(missing, ", ")).
			WithDetails(map[string]interface{}{"missing": missing})
	}
	if r.Source == r.Destination {
		return apperrors.NewValidationError(apperrors.CodeInvalidRequest,
			"source and destination must differ")
	}
	return nil
}
