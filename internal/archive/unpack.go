package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"

	"github.com/cruciblehq/snippetd/internal/build"
	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/paths"
)

// Upper bound on the size of the metadata record.
const maxMetadataSize = 1 << 20

// Returned after an archive is restored.
type Result struct {
	Metadata  *build.Metadata // Metadata of the restored environment.
	EnvDir    string          // Environment directory in the machine cache.
	Published bool            // False when the environment already existed.
}

// Restores an archive written by [Pack] into the machine cache of layout.
//
// An environment that already exists is left untouched.
func Unpack(ctx context.Context, r io.Reader, layout cache.Layout) (*Result, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrArchive, ErrMalformed, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	m, raw, err := readMetadata(tr)
	if err != nil {
		return nil, err
	}
	if !m.Compatible() {
		return nil, fmt.Errorf("%w: %w: %s on %s", ErrIncompatible, errdefs.ErrFailedPrecondition, m.Platform, platforms.DefaultString())
	}

	res := &Result{
		Metadata: m,
		EnvDir:   layout.EnvironmentDir(m.FriendlyName, m.ContainerHash),
	}

	exists, err := cache.Lookup(res.EnvDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	if exists {
		slog.Info("environment already present", "name", m.FriendlyName, "env", res.EnvDir)
		return res, nil
	}

	staging, err := cache.NewStaging(layout.Staging())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}

	if err := extract(ctx, tr, staging, raw); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			slog.Warn("failed to remove staging directory", "path", staging, "error", rmErr)
		}
		return nil, err
	}

	published, err := cache.Publish(staging, res.EnvDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	res.Published = published

	slog.Info("environment restored", "name", m.FriendlyName, "hash", m.ContainerHash, "env", res.EnvDir)
	return res, nil
}

// Reads and decodes the leading metadata entry.
func readMetadata(tr *tar.Reader) (*build.Metadata, []byte, error) {
	hdr, err := tr.Next()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", ErrArchive, ErrMalformed, err)
	}
	if hdr.Name != build.MetadataFile || hdr.Typeflag != tar.TypeReg {
		return nil, nil, fmt.Errorf("%w: %w: first entry is %q, want %s", ErrArchive, ErrMalformed, hdr.Name, build.MetadataFile)
	}
	if hdr.Size > maxMetadataSize {
		return nil, nil, fmt.Errorf("%w: %w: metadata record of %d bytes", ErrArchive, ErrMalformed, hdr.Size)
	}

	raw, err := io.ReadAll(tr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", ErrArchive, ErrMalformed, err)
	}

	m, err := build.DecodeMetadata(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", ErrArchive, ErrMalformed, err)
	}
	return m, raw, nil
}

// Extracts the remaining entries into root.
func extract(ctx context.Context, tr *tar.Reader, root string, metadata []byte) error {
	if err := os.WriteFile(filepath.Join(root, build.MetadataFile), metadata, paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	var dirs []*tar.Header

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w: %w", ErrArchive, ErrMalformed, err)
		}

		name, err := entryName(hdr.Name)
		if err != nil {
			return err
		}
		target, err := securejoin.SecureJoin(root, name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), paths.DefaultDirMode); err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}

		if err := extractEntry(tr, hdr, root, target); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArchive, hdr.Name, err)
		}
		if hdr.Typeflag == tar.TypeDir {
			hdr.Name = target
			dirs = append(dirs, hdr)
		}
	}

	// Modes and times of directories are applied once their contents exist.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].Name, fileMode(dirs[i])); err != nil {
			return fmt.Errorf("%w: %w", ErrArchive, err)
		}
		restoreTime(dirs[i].Name, dirs[i])
	}
	return nil
}

// Creates the file system object described by hdr at target.
func extractEntry(tr *tar.Reader, hdr *tar.Header, root, target string) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, paths.DefaultDirMode); err != nil {
			return err
		}

	case tar.TypeReg:
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode(hdr))
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if err := os.Chmod(target, fileMode(hdr)); err != nil {
			return err
		}
		restoreTime(target, hdr)

	case tar.TypeSymlink:
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return err
		}

	case tar.TypeLink:
		name, err := entryName(hdr.Linkname)
		if err != nil {
			return err
		}
		source, err := securejoin.SecureJoin(root, name)
		if err != nil {
			return err
		}
		if err := os.Link(source, target); err != nil {
			return err
		}

	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		if err := mknod(target, hdr); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: type %q", ErrUnsupportedEntry, hdr.Typeflag)
	}

	lchown(target, hdr)
	return nil
}

// Returns the cleaned relative name of an entry.
func entryName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if clean == "." || clean == ".." || path.IsAbs(clean) || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %w: entry %q", ErrArchive, ErrMalformed, name)
	}
	return filepath.FromSlash(clean), nil
}

// Returns the permission and special bits of an entry.
func fileMode(hdr *tar.Header) os.FileMode {
	return hdr.FileInfo().Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)
}

// Sets the modification time of an entry, logging failures.
func restoreTime(target string, hdr *tar.Header) {
	if err := os.Chtimes(target, hdr.AccessTime, hdr.ModTime); err != nil {
		slog.Debug("failed to restore modification time", "path", target, "error", err)
	}
}
