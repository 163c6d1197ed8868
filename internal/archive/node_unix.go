//go:build unix

package archive

import (
	"archive/tar"
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// Identifies a file across its hard links.
type inodeKey struct {
	dev uint64
	ino uint64
}

// Returns the inode of a file with more than one link.
func inode(info fs.FileInfo) (inodeKey, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st.Nlink < 2 {
		return inodeKey{}, false
	}
	return inodeKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}

// Creates a device node or named pipe described by hdr.
func mknod(path string, hdr *tar.Header) error {
	mode := uint32(hdr.Mode & 07777)
	switch hdr.Typeflag {
	case tar.TypeChar:
		mode |= unix.S_IFCHR
	case tar.TypeBlock:
		mode |= unix.S_IFBLK
	case tar.TypeFifo:
		mode |= unix.S_IFIFO
	}
	return unix.Mknod(path, mode, int(unix.Mkdev(uint32(hdr.Devmajor), uint32(hdr.Devminor))))
}

// Sets the owner of path, ignoring failures from unprivileged callers.
func lchown(path string, hdr *tar.Header) {
	_ = unix.Lchown(path, hdr.Uid, hdr.Gid)
}
