package media

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"media-converter/internal/logging"
)

// createExclusive creates path only if it does not already exist.
func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, path)
	}
	return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// writeExclusive creates path and fills it with write. Any failure after the
// file exists removes it again.
func writeExclusive(path string, write func(io.Writer) error) error {
	f, err := createExclusive(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	err = write(w)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %w", ErrStorageUnavailable, closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logging.Warn("Failed to remove partial output %s: %v", path, rmErr)
		}
		if errors.Is(err, ErrStorageUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}
