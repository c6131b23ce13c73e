package registry

import (
	"errors"
	"fmt"

	"github.com/meigma/fastdb/registry/oras"
)

// mapOCIError translates low-level oras errors to registry sentinels.
func mapOCIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, oras.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, oras.ErrInvalidReference) {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	return err
}
