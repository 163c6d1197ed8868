package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/snippetd/internal/paths"
)

// Returns the identity recorded in the marker file.
func markerContent(friendlyName string, dataHash digest.Digest) string {
	return friendlyName + "_" + dataHash.Encoded()
}

// Creates the marker file in dir. Fails if it already exists.
func writeMarker(dir, name, content string) error {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, paths.DefaultFileMode)
	if os.IsExist(err) {
		return fmt.Errorf("%w: %w: %w: %s", ErrIntegrity, ErrReservedName, errdefs.ErrAlreadyExists, filepath.Join(dir, name))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Removes the marker file from dir, logging failures.
func removeMarker(dir, name string) {
	if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove marker file", "path", filepath.Join(dir, name), "error", err)
	}
}
