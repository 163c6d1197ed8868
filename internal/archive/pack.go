package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/cruciblehq/snippetd/internal/build"
)

// Top-level entries of an environment directory that are not archived.
var transient = []string{"runroot"}

// Writes a compressed archive of the environment directory to w.
//
// The directory must hold a metadata record, which is written first.
func Pack(ctx context.Context, envDir string, w io.Writer) error {
	m, err := build.ReadMetadata(envDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	if err := writeDirToTar(ctx, tw, envDir); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	slog.Debug("environment archived", "name", m.FriendlyName, "hash", m.ContainerHash, "env", envDir)
	return nil
}

// Writes the metadata record and then the rest of the tree.
func writeDirToTar(ctx context.Context, tw *tar.Writer, envDir string) error {
	meta := filepath.Join(envDir, build.MetadataFile)
	info, err := os.Lstat(meta)
	if err != nil {
		return err
	}
	if err := writeTarEntry(tw, meta, build.MetadataFile, info, nil); err != nil {
		return err
	}

	links := map[inodeKey]string{}

	return filepath.WalkDir(envDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(envDir, path)
		if err != nil {
			return err
		}
		if rel == "." || rel == build.MetadataFile {
			return nil
		}
		if isTransient(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return writeTarEntry(tw, path, filepath.ToSlash(rel), info, links)
	})
}

// Writes a single entry to the tar writer.
//
// Regular files seen before under another name are written as hard links
// when links is non-nil. Sockets are skipped.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, info fs.FileInfo, links map[inodeKey]string) error {
	mode := info.Mode()
	if mode&fs.ModeSocket != 0 {
		slog.Debug("skipping socket", "path", hostPath)
		return nil
	}

	var link string
	if mode&fs.ModeSymlink != 0 {
		target, err := os.Readlink(hostPath)
		if err != nil {
			return err
		}
		link = target
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsupportedEntry, hostPath, err)
	}
	header.Name = archivePath
	if mode.IsDir() {
		header.Name += "/"
	}

	if mode.IsRegular() && links != nil {
		if key, ok := inode(info); ok {
			if first, seen := links[key]; seen {
				header.Typeflag = tar.TypeLink
				header.Linkname = first
				header.Size = 0
				return tw.WriteHeader(header)
			}
			links[key] = archivePath
		}
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if mode.IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.CopyN(tw, f, header.Size)
		return err
	}

	return nil
}

// Reports whether a relative path lies in a transient top-level entry.
func isTransient(rel string) bool {
	for _, t := range transient {
		if rel == t || len(rel) > len(t) && rel[:len(t)+1] == t+string(filepath.Separator) {
			return true
		}
	}
	return false
}
