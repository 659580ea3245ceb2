package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyLayerName is returned when a layer has no name.
var ErrEmptyLayerName = errors.New("layer name is empty")

// ValidationError describes one structural problem of a layer.
// RecordIndex is -1 for schema level problems.
type ValidationError struct {
	RecordIndex int
	Field       string
	Message     string
}

func (e *ValidationError) Error() string {
	switch {
	case e.RecordIndex < 0 && e.Field != "":
		return fmt.Sprintf("field %q: %s", e.Field, e.Message)
	case e.RecordIndex < 0:
		return e.Message
	case e.Field != "":
		return fmt.Sprintf("record %d, field %q: %s", e.RecordIndex, e.Field, e.Message)
	default:
		return fmt.Sprintf("record %d: %s", e.RecordIndex, e.Message)
	}
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}
