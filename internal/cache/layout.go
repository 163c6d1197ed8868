package cache

import (
	"fmt"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"
)

// A cache tier.
type Tier int

const (
	TierOld     Tier = iota // Previous render's results. Never written.
	TierMachine             // Long-lived results shared between renders.
	TierNew                 // Current render's results.
)

func (t Tier) String() string {
	switch t {
	case TierOld:
		return "old"
	case TierMachine:
		return "machine"
	case TierNew:
		return "new"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

const (
	entryPrefix  = "output_"  // Prefix of entry directory names.
	environments = "env"      // Machine-tier subdirectory of build environments.
	stagingDir   = ".staging" // Machine-tier subdirectory of staged entries.
)

// Root directories of the cache tiers.
//
// Only the machine tier is required. An empty Old or New disables that tier.
type Layout struct {
	Old     string // Old-render tier root.
	Machine string // Machine tier root.
	New     string // New-render tier root.
}

// Checks that every configured root is an absolute path.
func (l Layout) Validate() error {
	if l.Machine == "" {
		return fmt.Errorf("%w: %w: machine cache root is required", ErrConfiguration, errdefs.ErrInvalidArgument)
	}
	for _, root := range []struct {
		tier Tier
		path string
	}{{TierOld, l.Old}, {TierMachine, l.Machine}, {TierNew, l.New}} {
		if root.path != "" && !filepath.IsAbs(root.path) {
			return fmt.Errorf("%w: %w: %s cache root must be absolute: %s", ErrConfiguration, errdefs.ErrInvalidArgument, root.tier, root.path)
		}
	}
	return nil
}

// Returns the root of tier, or "" if the tier is disabled.
func (l Layout) Root(t Tier) string {
	switch t {
	case TierOld:
		return l.Old
	case TierMachine:
		return l.Machine
	case TierNew:
		return l.New
	default:
		return ""
	}
}

// Returns the path of the entry for dataHash in tier, or "" if the tier is
// disabled.
func (l Layout) Entry(t Tier, dataHash digest.Digest) string {
	root := l.Root(t)
	if root == "" {
		return ""
	}
	return filepath.Join(root, entryPrefix+dataHash.Encoded())
}

// Returns the build environment directory of a setup directory.
func (l Layout) EnvironmentDir(friendlyName string, containerHash digest.Digest) string {
	return filepath.Join(l.Machine, environments, friendlyName+"_"+containerHash.Encoded())
}

// Returns the directory holding machine-tier staging directories.
//
// It lives below the machine root so that a staged entry can be renamed
// onto its final path without crossing file systems.
func (l Layout) Staging() string {
	return filepath.Join(l.Machine, stagingDir)
}
