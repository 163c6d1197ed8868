package hashdir

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"
)

// Digest algorithm used for every fingerprint.
const Algorithm = digest.SHA256

const (
	tagDir  = "dir"
	tagFile = "file"
)

// A single entry below the hashed root.
type entry struct {
	rel  string // Slash-separated path relative to the root.
	path string // Absolute path on disk.
	dir  bool   // Whether the entry is a directory.
	size int64  // Size in bytes, regular files only.
}

// Returns the fingerprint of the directory tree rooted at dir.
//
// The path must be absolute. A symlink to a directory hashes as the
// directory it points to. An empty directory hashes to the digest of the
// empty byte stream.
func Directory(dir string) (digest.Digest, error) {
	d := Algorithm.Digester()
	if err := Write(d.Hash(), dir); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// Feeds the fingerprint stream of the tree rooted at dir into h.
//
// This is the building block of [Directory], exposed so callers can fold a
// tree into a larger hash.
func Write(h hash.Hash, dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: %w: %s", ErrHash, ErrNotAbsolute, dir)
	}

	// The walk does not descend into a symlinked root, so it is resolved
	// first and the tree behind it is hashed.
	dir, err := filepath.EvalSymlinks(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHash, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHash, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %w: %s", ErrHash, ErrNotDirectory, dir)
	}

	entries, err := list(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHash, err)
	}

	for _, e := range entries {
		if e.dir {
			writeField(h, []byte(tagDir))
			writeField(h, []byte(e.rel))
			continue
		}
		writeField(h, []byte(tagFile))
		writeField(h, []byte(e.rel))
		if err := writeFile(h, e); err != nil {
			return fmt.Errorf("%w: %w", ErrHash, err)
		}
	}

	return nil
}

// Returns the digest of a sequence of length-prefixed string fields.
func Sum(fields ...string) digest.Digest {
	d := Algorithm.Digester()
	for _, f := range fields {
		writeField(d.Hash(), []byte(f))
	}
	return d.Digest()
}

// Enumerates all entries below root, sorted by root-relative path.
func list(root string) ([]entry, error) {
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			entries = append(entries, entry{rel: rel, path: path, dir: true})
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			entries = append(entries, entry{rel: rel, path: path, size: info.Size()})
		default:
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedEntry, rel, d.Type())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rel < entries[j].rel
	})

	return entries, nil
}

// Writes the size and contents of a regular file.
//
// The size recorded at enumeration is the frame length. A file that changes
// size while being hashed is an error rather than a silently different
// fingerprint.
func writeFile(h hash.Hash, e entry) error {
	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	writeLength(h, uint64(e.size))

	n, err := io.Copy(h, io.LimitReader(f, e.size+1))
	if err != nil {
		return err
	}
	if n != e.size {
		return fmt.Errorf("%s changed size while hashing (%d != %d)", e.rel, n, e.size)
	}
	return nil
}

// Writes a field preceded by its 8-byte big-endian length.
func writeField(h hash.Hash, data []byte) {
	writeLength(h, uint64(len(data)))
	h.Write(data)
}

func writeLength(h hash.Hash, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.Write(buf[:])
}
