package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"

	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Name of the marker file when none is configured.
const DefaultMarkerFilename = ".snippet_identity"

// Mount points of the input and output directories inside the container.
const (
	InputMount  = "/input"
	OutputMount = "/output"
)

// Command run when a request names none.
var DefaultCommand = []string{"sh", InputMount + "/run.sh"}

// Staging directories older than this are considered abandoned.
const staleStaging = 24 * time.Hour

// Configures a [Helper].
type Config struct {
	Backend        runtime.Backend // Container runtime.
	Layout         cache.Layout    // Cache tier roots.
	MarkerFilename string          // Marker file name. Defaults to [DefaultMarkerFilename].
	Timeout        time.Duration   // Default run timeout; zero means none.
}

// Applies defaults and checks the configuration.
func (c *Config) normalize() error {
	if c.Backend == nil {
		return fmt.Errorf("%w: %w: no runtime backend", ErrConfiguration, errdefs.ErrInvalidArgument)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if c.MarkerFilename == "" {
		c.MarkerFilename = DefaultMarkerFilename
	}
	if err := ValidateMarkerFilename(c.MarkerFilename); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %w: negative timeout %v", ErrConfiguration, errdefs.ErrInvalidArgument, c.Timeout)
	}
	return nil
}

// Checks that name is a single path element usable as the marker file.
func ValidateMarkerFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') || filepath.Base(name) != name {
		return fmt.Errorf("%w: %w: marker file name %q", ErrReservedName, errdefs.ErrInvalidArgument, name)
	}
	return nil
}
