package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/snippetd/internal/hashdir"
)

// Returns the cache key of a run of the container identified by
// containerHash over the input identified by inputHash.
func DataHash(containerHash, inputHash digest.Digest, markerFilename string) digest.Digest {
	return hashdir.Sum(containerHash.String(), "data", inputHash.String(), "hashfilename", markerFilename)
}

// Fingerprints a setup and input directory pair.
//
// The input must not contain the marker file.
func ComputeFingerprint(setupDir, inputDir, markerFilename string) (*Fingerprint, error) {
	if err := checkMarkerAbsent(inputDir, markerFilename); err != nil {
		return nil, err
	}

	containerHash, err := hashdir.Directory(setupDir)
	if err != nil {
		return nil, fmt.Errorf("%w: setup directory: %w", ErrInvalidRequest, err)
	}
	inputHash, err := hashdir.Directory(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: input directory: %w", ErrInvalidRequest, err)
	}

	return &Fingerprint{
		ContainerHash: containerHash,
		InputHash:     inputHash,
		DataHash:      DataHash(containerHash, inputHash, markerFilename),
	}, nil
}

// Fails if the marker file already exists in dir.
func checkMarkerAbsent(dir, markerFilename string) error {
	_, err := os.Lstat(filepath.Join(dir, markerFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return fmt.Errorf("%w: %w: %w: input contains %s", ErrIntegrity, ErrReservedName, errdefs.ErrAlreadyExists, markerFilename)
}
