//go:build linux

package cache

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Renames oldpath to newpath, failing with EEXIST if newpath exists.
//
// Falls back to [renameIfAbsent] on kernels or file systems without
// RENAME_NOREPLACE.
func renameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
		return renameIfAbsent(oldpath, newpath)
	}
	if err != nil {
		return &os.LinkError{Op: "renameat2", Old: oldpath, New: newpath, Err: err}
	}
	return nil
}
