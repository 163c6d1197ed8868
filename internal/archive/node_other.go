//go:build !unix

package archive

import (
	"archive/tar"
	"fmt"
	"io/fs"
)

type inodeKey struct{}

func inode(fs.FileInfo) (inodeKey, bool) {
	return inodeKey{}, false
}

func mknod(path string, _ *tar.Header) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedEntry, path)
}

func lchown(string, *tar.Header) {}
