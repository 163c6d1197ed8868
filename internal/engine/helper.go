package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cruciblehq/snippetd/internal/build"
	"github.com/cruciblehq/snippetd/internal/cache"
)

// Renders snippets through the cache tiers, running containers on misses.
type Helper struct {
	mu  sync.Mutex // Serializes runs.
	cfg Config
}

// Creates a [Helper].
//
// The runtime's version is checked here, so a missing or unsupported tool
// fails before any request is accepted. Staging directories abandoned in
// the machine tier by killed processes are removed.
func New(ctx context.Context, cfg Config) (*Helper, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Backend.VersionCheck(ctx); err != nil {
		return nil, err
	}

	if _, err := cache.SweepStaging(cfg.Layout.Staging(), time.Now().Add(-staleStaging)); err != nil {
		slog.Warn("failed to sweep staging directories", "error", err)
	}

	slog.Debug("engine ready",
		"backend", cfg.Backend.Kind(),
		"machine", cfg.Layout.Machine,
		"old", cfg.Layout.Old,
		"new", cfg.Layout.New,
		"marker", cfg.MarkerFilename,
	)

	return &Helper{cfg: cfg}, nil
}

// Returns the name of the marker file.
func (h *Helper) MarkerFilename() string {
	return h.cfg.MarkerFilename
}

// Returns the cache layout.
func (h *Helper) Layout() cache.Layout {
	return h.cfg.Layout
}

// Populates the request's output directory.
//
// Requests are executed one at a time. Staged input is removed after a
// successful run and kept, with a warning naming it, after a failed one.
func (h *Helper) Run(ctx context.Context, req Request) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := req.normalize(); err != nil {
		return nil, err
	}

	input, err := StageInput(req.InputDir, req.Overrides, h.cfg.MarkerFilename)
	if err != nil {
		return nil, err
	}

	res, err := h.run(ctx, &req, input)

	if input != req.InputDir {
		if err != nil {
			slog.Warn("keeping staged input of failed run", "name", req.FriendlyName, "path", input)
		} else if rmErr := os.RemoveAll(input); rmErr != nil {
			slog.Warn("failed to remove staged input", "path", input, "error", rmErr)
		}
	}

	return res, err
}

// Resolves the request through the tiers, running the container on a miss.
func (h *Helper) run(ctx context.Context, req *Request, input string) (*Result, error) {
	fp, err := ComputeFingerprint(req.SetupDir, input, h.cfg.MarkerFilename)
	if err != nil {
		return nil, err
	}

	layout := h.cfg.Layout
	res := &Result{
		Fingerprint: *fp,
		InputDir:    input,
		OutputDir:   req.OutputDir,
		CacheDir:    fp.entry(layout, cache.TierNew),
	}
	old := fp.entry(layout, cache.TierOld)
	machine := fp.entry(layout, cache.TierMachine)

	slog.Debug("fingerprint",
		"name", req.FriendlyName,
		"container", fp.ContainerHash,
		"input", fp.InputHash,
		"data", fp.DataHash,
	)

	if hit, err := lookup(old); err != nil {
		return nil, err
	} else if hit {
		slog.Info("cache hit", "name", req.FriendlyName, "tier", cache.TierOld, "hash", fp.DataHash)
		if err := deliver(old, res); err != nil {
			return nil, err
		}
		if _, err := cache.Commit(old, machine, layout.Staging()); err != nil {
			return nil, wrapCache(err)
		}
		res.Source = SourceOld
		return res, nil
	}

	if hit, err := lookup(machine); err != nil {
		return nil, err
	} else if hit {
		slog.Info("cache hit", "name", req.FriendlyName, "tier", cache.TierMachine, "hash", fp.DataHash)
		if err := deliver(machine, res); err != nil {
			return nil, err
		}
		res.Source = SourceMachine
		return res, nil
	}

	if err := h.launch(ctx, req, input, fp); err != nil {
		return nil, err
	}

	if err := fill(req.OutputDir, res.CacheDir); err != nil {
		return nil, err
	}
	if _, err := cache.Commit(req.OutputDir, machine, layout.Staging()); err != nil {
		return nil, wrapCache(err)
	}

	res.Source = SourceRun
	return res, nil
}

// Ensures the image and runs the container with the marker file in place.
func (h *Helper) launch(ctx context.Context, req *Request, input string, fp *Fingerprint) error {
	img, err := build.Ensure(ctx, build.Options{
		Backend:       h.cfg.Backend,
		Layout:        h.cfg.Layout,
		FriendlyName:  req.FriendlyName,
		SetupDir:      req.SetupDir,
		ContainerHash: fp.ContainerHash,
	})
	if err != nil {
		return err
	}

	cfg, err := req.launchConfig(input, h.cfg.Timeout)
	if err != nil {
		return err
	}

	if err := writeMarker(input, h.cfg.MarkerFilename, markerContent(req.FriendlyName, fp.DataHash)); err != nil {
		return err
	}
	defer removeMarker(input, h.cfg.MarkerFilename)

	slog.Info("launching container", "name", req.FriendlyName, "hash", fp.DataHash, "timeout", cfg.Timeout)

	start := time.Now()
	if err := h.cfg.Backend.Run(ctx, img.EnvDir, img.ImageName, req.Command, cfg); err != nil {
		return err
	}

	slog.Debug("container finished", "name", req.FriendlyName, "elapsed", time.Since(start))
	return nil
}

// Copies a cache entry into the new-render tier and the output directory.
func deliver(entry string, res *Result) error {
	if err := fill(entry, res.CacheDir); err != nil {
		return err
	}
	if err := cache.CopyTree(entry, res.OutputDir); err != nil {
		return wrapCache(err)
	}
	return nil
}

// Copies src into the new-render entry dst unless the tier is disabled or
// the entry already exists.
func fill(src, dst string) error {
	hit, err := lookup(dst)
	if err != nil || hit || dst == "" {
		return err
	}
	if err := cache.CopyTree(src, dst); err != nil {
		return wrapCache(err)
	}
	return nil
}

// Looks up a cache entry.
func lookup(path string) (bool, error) {
	hit, err := cache.Lookup(path)
	if err != nil {
		return false, wrapCache(err)
	}
	return hit, nil
}

// Classifies a cache error under this package's sentinels.
func wrapCache(err error) error {
	if errors.Is(err, cache.ErrIntegrity) {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
}
