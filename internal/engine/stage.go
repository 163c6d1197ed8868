package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/paths"
)

// Content to place at a path of the input directory.
type Override struct {
	Path    string // Slash-separated path relative to the input root.
	Content []byte // File content.
}

// Returns an override writing s as UTF-8 text.
func Text(path, s string) Override {
	return Override{Path: path, Content: []byte(s)}
}

// Returns an override writing raw bytes.
func Binary(path string, b []byte) Override {
	return Override{Path: path, Content: b}
}

// Returns the cleaned relative path of the override, rejecting paths that
// leave the input root or name the marker file.
func (o Override) target(markerFilename string) (string, error) {
	p := filepath.ToSlash(o.Path)
	if p == "" || path.IsAbs(p) || filepath.IsAbs(o.Path) {
		return "", fmt.Errorf("%w: %w: %w: override path must be relative: %q", ErrIntegrity, ErrPathEscape, errdefs.ErrInvalidArgument, o.Path)
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %w: %w: %q", ErrIntegrity, ErrPathEscape, errdefs.ErrInvalidArgument, o.Path)
	}
	if clean == markerFilename {
		return "", fmt.Errorf("%w: %w: %w: override targets %q", ErrIntegrity, ErrReservedName, errdefs.ErrInvalidArgument, markerFilename)
	}
	return clean, nil
}

// Returns a directory holding inputDir with the overrides applied.
//
// Without overrides inputDir itself is returned. Otherwise the input is
// copied into a new temporary directory, which the caller owns. Every
// override is checked before anything is copied.
func StageInput(inputDir string, overrides []Override, markerFilename string) (string, error) {
	if len(overrides) == 0 {
		return inputDir, nil
	}

	targets := make([]string, len(overrides))
	for i, o := range overrides {
		t, err := o.target(markerFilename)
		if err != nil {
			return "", err
		}
		targets[i] = t
	}

	staged, err := os.MkdirTemp("", "snippetd-input-")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if err := apply(inputDir, staged, overrides, targets, markerFilename); err != nil {
		if rmErr := os.RemoveAll(staged); rmErr != nil {
			slog.Warn("failed to remove staged input", "path", staged, "error", rmErr)
		}
		return "", err
	}

	slog.Debug("input staged", "input", inputDir, "staged", staged, "overrides", len(overrides))
	return staged, nil
}

// Copies inputDir into staged and writes each override at its target.
func apply(inputDir, staged string, overrides []Override, targets []string, markerFilename string) error {
	if err := cache.CopyTree(inputDir, staged); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	for i, o := range overrides {
		// Symlinks copied from the input are resolved inside the root.
		dst, err := securejoin.SecureJoin(staged, targets[i])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		rel, err := filepath.Rel(staged, dst)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %w: %w: %q", ErrIntegrity, ErrPathEscape, errdefs.ErrInvalidArgument, o.Path)
		}
		if rel == markerFilename {
			return fmt.Errorf("%w: %w: %w: override resolves to %q", ErrIntegrity, ErrReservedName, errdefs.ErrInvalidArgument, markerFilename)
		}

		if err := os.MkdirAll(filepath.Dir(dst), paths.DefaultDirMode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		if err := os.WriteFile(dst, o.Content, paths.DefaultFileMode); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}
