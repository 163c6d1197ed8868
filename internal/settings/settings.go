package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/containerd/errdefs"
	"gopkg.in/yaml.v3"

	"github.com/cruciblehq/snippetd/internal/cache"
	"github.com/cruciblehq/snippetd/internal/engine"
	"github.com/cruciblehq/snippetd/internal/paths"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Supported version strings are major.minor.
var versionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Configuration of snippetd.
type Settings struct {
	Runtime RuntimeSettings `yaml:"runtime"`
	Cache   CacheSettings   `yaml:"cache"`
	Run     RunSettings     `yaml:"run"`
}

// Selects the container runtime.
type RuntimeSettings struct {
	Backend string `yaml:"backend"` // Backend kind.
	Binary  string `yaml:"binary"`  // Tool binary. Empty uses the backend name.
	Version string `yaml:"version"` // Supported major.minor. Empty uses the pinned version.
}

// Locates the cache tiers.
type CacheSettings struct {
	Machine string `yaml:"machine"` // Machine tier root.
	Old     string `yaml:"old"`     // Old-render tier root. Empty disables the tier.
	New     string `yaml:"new"`     // New-render tier root. Empty disables the tier.
}

// Controls container runs.
type RunSettings struct {
	Timeout Duration `yaml:"timeout"` // Default run timeout. Zero means none.
	Marker  string   `yaml:"marker"`  // Marker file name.
}

// Returns the default settings.
func Default() *Settings {
	return &Settings{
		Runtime: RuntimeSettings{Backend: string(runtime.KindPodman)},
		Cache:   CacheSettings{Machine: paths.MachineCache()},
		Run:     RunSettings{Marker: engine.DefaultMarkerFilename},
	}
}

// Reads settings from path. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parses and validates YAML settings over the defaults.
func Parse(data []byte) (*Settings, error) {
	s := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w: %w", ErrConfiguration, errdefs.ErrInvalidArgument, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Checks every value.
func (s *Settings) Validate() error {
	kind := runtime.Kind(s.Runtime.Backend)
	if runtime.PinnedVersion(kind) == "" {
		return invalid("unknown runtime backend %q", s.Runtime.Backend)
	}
	if s.Runtime.Version != "" && !versionPattern.MatchString(s.Runtime.Version) {
		return invalid("runtime version %q is not major.minor", s.Runtime.Version)
	}

	if s.Cache.Machine == "" {
		return invalid("machine cache root is required")
	}
	for _, root := range []struct{ key, path string }{
		{"cache.machine", s.Cache.Machine},
		{"cache.old", s.Cache.Old},
		{"cache.new", s.Cache.New},
	} {
		if root.path != "" && !filepath.IsAbs(root.path) {
			return invalid("%s must be absolute: %q", root.key, root.path)
		}
	}

	if s.Run.Timeout < 0 {
		return invalid("negative run timeout")
	}
	if err := engine.ValidateMarkerFilename(s.Run.Marker); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

// Returns the runtime backend options.
func (s *Settings) RuntimeOptions() runtime.Options {
	return runtime.Options{
		Kind:    runtime.Kind(s.Runtime.Backend),
		Binary:  s.Runtime.Binary,
		Version: s.Runtime.Version,
	}
}

// Returns the cache layout.
func (s *Settings) Layout() cache.Layout {
	return cache.Layout{
		Old:     s.Cache.Old,
		Machine: s.Cache.Machine,
		New:     s.Cache.New,
	}
}

// Returns the engine configuration over backend.
func (s *Settings) EngineConfig(backend runtime.Backend) engine.Config {
	return engine.Config{
		Backend:        backend,
		Layout:         s.Layout(),
		MarkerFilename: s.Run.Marker,
		Timeout:        time.Duration(s.Run.Timeout),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, errdefs.ErrInvalidArgument, fmt.Sprintf(format, args...))
}
