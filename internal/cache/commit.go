package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cruciblehq/snippetd/internal/paths"
)

// Copies src into a new staging directory under stagingRoot, then publishes
// it at dst.
//
// Returns false without copying when dst already exists, and false when
// another writer published dst first. Either way dst holds a complete
// entry afterwards. A failed copy removes its staging directory.
func Commit(src, dst, stagingRoot string) (bool, error) {
	exists, err := Lookup(dst)
	if err != nil {
		return false, err
	}
	if exists {
		slog.Debug("cache entry already committed", "entry", dst)
		return false, nil
	}

	staging, err := NewStaging(stagingRoot)
	if err != nil {
		return false, err
	}

	if err := CopyTree(src, staging); err != nil {
		discard(staging)
		return false, err
	}

	return Publish(staging, dst)
}

// Creates an empty, uniquely named staging directory under stagingRoot.
//
// Names are ULIDs, so the creation time of an abandoned staging directory
// can be recovered from its name.
func NewStaging(stagingRoot string) (string, error) {
	if err := os.MkdirAll(stagingRoot, paths.DefaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	dir := filepath.Join(stagingRoot, ulid.Make().String())
	if err := os.Mkdir(dir, paths.DefaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return dir, nil
}

// Renames a fully populated staging directory onto dst.
//
// The rename never replaces an existing dst. If dst exists, staging is
// removed and false is returned; a dst that is not a directory is an
// [ErrIntegrity] fault.
func Publish(staging, dst string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(dst), paths.DefaultDirMode); err != nil {
		return false, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	err := renameNoReplace(staging, dst)
	if err == nil {
		slog.Debug("cache entry committed", "entry", dst)
		return true, nil
	}

	if !errors.Is(err, fs.ErrExist) {
		return false, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Debug("cache entry committed by another writer", "entry", dst)
	discard(staging)

	if _, err := Lookup(dst); err != nil {
		return false, err
	}
	return false, nil
}

// Removes staging directories under stagingRoot created before the given
// time, returning how many were removed.
//
// Entries whose names are not ULIDs are left alone.
func SweepStaging(stagingRoot string, before time.Time) (int, error) {
	entries, err := os.ReadDir(stagingRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	removed := 0
	for _, e := range entries {
		id, err := ulid.ParseStrict(e.Name())
		if err != nil {
			continue
		}
		if !ulid.Time(id.Time()).Before(before) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(stagingRoot, e.Name())); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		removed++
	}

	if removed > 0 {
		slog.Info("removed abandoned staging directories", "count", removed, "root", stagingRoot)
	}
	return removed, nil
}

// Renames oldpath to newpath unless newpath exists.
//
// The existence check and the rename are separate steps, so a concurrent
// writer may still win between them. Used where the kernel cannot perform
// the check atomically.
func renameIfAbsent(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}

// Removes a staging directory, logging failures.
func discard(staging string) {
	if err := os.RemoveAll(staging); err != nil {
		slog.Warn("failed to remove staging directory", "path", staging, "error", err)
	}
}
