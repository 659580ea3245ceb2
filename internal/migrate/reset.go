package migrate

import (
	"os"

	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

// Remover deletes a destination container. Destinations that do not live on
// the local filesystem implement it so the driver can reset them.
type Remover interface {
	Remove(path string) error
}

type fileRemover struct{}

func (fileRemover) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ResetDestination deletes the file at path when overwrite is true.
// A missing file is not an error. With overwrite false it does nothing.
func ResetDestination(path string, overwrite bool) error {
	return resetWith(fileRemover{}, path, overwrite)
}

func resetWith(rm Remover, path string, overwrite bool) error {
	if !overwrite {
		return nil
	}
	if err := rm.Remove(path); err != nil {
		return apperrors.NewResetError(path, err)
	}
	return nil
}
