package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/snippetd/internal/build"
	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/paths"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// A snippet to render.
type Request struct {
	FriendlyName string                  // Human-readable name of the setup directory.
	SetupDir     string                  // Absolute path of the setup directory.
	InputDir     string                  // Absolute path of the input directory, mounted read-only.
	OutputDir    string                  // Absolute path of an empty output directory, created if absent.
	Command      []string                // Command to run. Defaults to [DefaultCommand].
	Overrides    []Override              // Files replaced or added in a copy of the input.
	Volumes      []runtime.VolumeMapping // Additional bind mounts.
	Env          []runtime.EnvVar        // Environment variables.
	Timeout      time.Duration           // Run timeout. Defaults to the configured timeout.
}

// Where the output of a request came from.
type Source string

const (
	SourceOld     Source = "old"     // Copied from the old-render tier.
	SourceMachine Source = "machine" // Copied from the machine tier.
	SourceRun     Source = "run"     // Produced by running the container.
)

// Returned after the output directory is populated.
type Result struct {
	Fingerprint
	Source    Source // Tier or run that produced the output.
	InputDir  string // Input directory that was hashed and mounted.
	OutputDir string // Populated output directory.
	CacheDir  string // New-render entry, or "" when that tier is disabled.
}

// Identifies the output of a request.
type Fingerprint struct {
	ContainerHash digest.Digest // Digest of the setup directory.
	InputHash     digest.Digest // Digest of the effective input directory.
	DataHash      digest.Digest // Cache key.
}

// Applies defaults, validates the request and creates the output directory,
// which must be empty.
func (r *Request) normalize() error {
	if err := build.ValidateName(r.FriendlyName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for _, dir := range []struct{ name, path string }{{"setup", r.SetupDir}, {"input", r.InputDir}} {
		if err := requireDir(dir.name, dir.path); err != nil {
			return err
		}
	}
	if !filepath.IsAbs(r.OutputDir) {
		return fmt.Errorf("%w: %w: output directory must be absolute: %q", ErrInvalidRequest, errdefs.ErrInvalidArgument, r.OutputDir)
	}
	if len(r.Command) == 0 {
		r.Command = slices.Clone(DefaultCommand)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: %w: negative timeout %v", ErrInvalidRequest, errdefs.ErrInvalidArgument, r.Timeout)
	}

	if err := os.MkdirAll(r.OutputDir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := requireDir("output", r.OutputDir); err != nil {
		return err
	}

	// Whatever the output holds is committed to the cache after a run.
	entries, err := os.ReadDir(r.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %w: output directory is not empty: %q", ErrInvalidRequest, errdefs.ErrInvalidArgument, r.OutputDir)
	}
	return nil
}

// Checks that path is an absolute path to an existing directory.
func requireDir(name, path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %w: %s directory must be absolute: %q", ErrInvalidRequest, errdefs.ErrInvalidArgument, name, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w: %s directory: %w", ErrInvalidRequest, errdefs.ErrNotFound, name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %w: %s directory is not a directory: %q", ErrInvalidRequest, errdefs.ErrInvalidArgument, name, path)
	}
	return nil
}

// Returns the launch configuration of a request whose input is mounted
// from input.
func (r *Request) launchConfig(input string, timeout time.Duration) (runtime.LaunchConfig, error) {
	in, err := runtime.NewVolumeMapping(input, InputMount, runtime.ReadOnly)
	if err != nil {
		return runtime.LaunchConfig{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	out, err := runtime.NewVolumeMapping(r.OutputDir, OutputMount, runtime.ReadWrite)
	if err != nil {
		return runtime.LaunchConfig{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if r.Timeout > 0 {
		timeout = r.Timeout
	}

	return runtime.LaunchConfig{
		Timeout: timeout,
		Volumes: append([]runtime.VolumeMapping{in, out}, r.Volumes...),
		Env:     r.Env,
	}, nil
}

// Returns the path of the entry for the request's data in tier.
func (f Fingerprint) entry(l cache.Layout, t cache.Tier) string {
	return l.Entry(t, f.DataHash)
}
