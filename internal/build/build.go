package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/hashdir"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Controls image provisioning.
type Options struct {
	Backend       runtime.Backend // Runtime that builds the image.
	Layout        cache.Layout    // Cache layout; environments live in the machine tier.
	FriendlyName  string          // Human-readable name of the setup directory.
	SetupDir      string          // Absolute path of the setup directory.
	ContainerHash digest.Digest   // Digest of SetupDir. Computed when empty.
}

// Returned after the image is known to exist.
type Result struct {
	EnvDir        string        // Environment directory holding the image storage.
	ImageName     string        // Name passed to the runtime; the image is tagged "<ImageName>_image".
	ContainerHash digest.Digest // Digest of the setup directory.
	Built         bool          // Whether this call built the image.
}

// Ensures that the image of a setup directory exists, building it if needed.
func Ensure(ctx context.Context, opts Options) (*Result, error) {
	if err := ValidateName(opts.FriendlyName); err != nil {
		return nil, err
	}

	containerHash := opts.ContainerHash
	if containerHash == "" {
		var err error
		if containerHash, err = hashdir.Directory(opts.SetupDir); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
	}

	res := &Result{
		EnvDir:        opts.Layout.EnvironmentDir(opts.FriendlyName, containerHash),
		ImageName:     containerHash.Encoded(),
		ContainerHash: containerHash,
	}

	exists, err := opts.Backend.ImageExists(ctx, res.EnvDir, res.ImageName)
	if err != nil {
		return nil, err
	}
	if exists {
		slog.Debug("image exists", "name", opts.FriendlyName, "hash", containerHash, "env", res.EnvDir)
		return res, nil
	}

	slog.Info("initializing container (may take several minutes)", "name", opts.FriendlyName, "hash", containerHash)

	if err := stage(opts.SetupDir, res.EnvDir); err != nil {
		return nil, err
	}
	if err := opts.Backend.BuildImage(ctx, res.EnvDir, res.ImageName); err != nil {
		return nil, err
	}
	if err := WriteMetadata(res.EnvDir, NewMetadata(opts.FriendlyName, containerHash, opts.Backend.Kind())); err != nil {
		return nil, err
	}

	res.Built = true
	slog.Info("container initialized", "name", opts.FriendlyName, "env", res.EnvDir)
	return res, nil
}

// Copies the setup directory into the environment directory.
//
// The top-level entries of the setup directory must not collide with the
// entries the runtime or this package keep there.
func stage(setupDir, envDir string) error {
	entries, err := os.ReadDir(setupDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	reserved := append(runtime.ReservedNames(), MetadataFile)
	for _, e := range entries {
		if slices.Contains(reserved, e.Name()) {
			return fmt.Errorf("%w: %w: %s", ErrReservedName, errdefs.ErrInvalidArgument, filepath.Join(setupDir, e.Name()))
		}
	}

	if err := cache.CopyTree(setupDir, envDir); err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}
	return nil
}
