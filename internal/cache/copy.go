package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// A copied directory and the modification time to restore on it.
type dirTime struct {
	path  string
	mtime time.Time
}

// Copies the tree rooted at src into dst, creating dst if needed.
//
// Directories, regular files and symbolic links are copied, anything else
// is [ErrUnsupportedEntry]. Entries already present in dst are replaced.
// Permission bits are preserved. Modification times are restored on a
// best-effort basis.
//
// A symlinked src is resolved and the tree behind it is copied; dst is
// never replaced by a link.
func CopyTree(src, dst string) error {
	src, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrFileSystemOperation, src)
	}

	var dirs []dirTime

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch mode := info.Mode(); {
		case mode.IsDir():
			if err := copyDir(target, mode.Perm()); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{target, info.ModTime()})
		case mode.IsRegular():
			if err := copyFile(path, target, mode.Perm()); err != nil {
				return err
			}
			restoreTime(target, info.ModTime())
		case mode&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		default:
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedEntry, path, mode.Type())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	// Writing children updates a directory's mtime, so parents go last.
	for i := len(dirs) - 1; i >= 0; i-- {
		restoreTime(dirs[i].path, dirs[i].mtime)
	}

	return nil
}

// Creates a directory, replacing a non-directory in its place.
func copyDir(target string, perm fs.FileMode) error {
	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			return nil
		}
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(target, perm|0700); err != nil {
		return err
	}
	return os.Chmod(target, perm|0700)
}

// Copies a regular file, replacing whatever is at target.
func copyFile(src, target string, perm fs.FileMode) error {
	if err := removeUnlessRegular(target); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Chmod(perm); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Recreates a symbolic link with the same target.
func copySymlink(src, target string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return os.Symlink(link, target)
}

// Removes target if it exists and is not a regular file, so that opening
// it for writing never follows a link or fails on a directory.
func removeUnlessRegular(target string) error {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode().IsRegular() {
		return nil
	}
	return os.RemoveAll(target)
}

// Sets the modification time of path, logging failures.
func restoreTime(path string, mtime time.Time) {
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		slog.Debug("failed to restore modification time", "path", path, "error", err)
	}
}
