package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/containerd/errdefs"
)

// Reports whether a cache entry exists at path.
//
// An entry is a directory. A path that exists but is not a directory is an
// [ErrIntegrity] fault and is never treated as a miss. An empty path, as
// returned for a disabled tier, is a miss.
func Lookup(path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %w: cache entry is not a directory: %s", ErrIntegrity, errdefs.ErrDataLoss, path)
	}
	return true, nil
}
