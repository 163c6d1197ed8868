package runtime

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// Separator of the fields of a --volume flag. Paths containing it cannot be
// expressed on the pinned runtime versions.
const volumeSeparator = ":"

// Access mode of a bind mount.
type Mode int

const (
	ReadOnly  Mode = iota // Mounted read-only.
	ReadWrite             // Mounted read-write, relabelled for private use by the container.
)

// Returns the --volume option for the mode.
func (m Mode) option() string {
	if m == ReadWrite {
		return "Z"
	}
	return "ro"
}

func (m Mode) String() string {
	if m == ReadWrite {
		return "rw"
	}
	return "ro"
}

// A bind mount of a host directory into the container.
type VolumeMapping struct {
	HostPath  string // Absolute host path.
	GuestPath string // Absolute path inside the container.
	Mode      Mode   // Access mode.
}

// Creates a [VolumeMapping], making both paths absolute.
//
// Neither path may contain the volume field separator.
func NewVolumeMapping(hostPath, guestPath string, mode Mode) (VolumeMapping, error) {
	host, err := filepath.Abs(hostPath)
	if err != nil {
		return VolumeMapping{}, fmt.Errorf("%w: %w", ErrInvalidVolume, err)
	}
	v := VolumeMapping{
		HostPath:  host,
		GuestPath: filepath.Clean("/" + guestPath),
		Mode:      mode,
	}
	if err := v.Validate(); err != nil {
		return VolumeMapping{}, err
	}
	return v, nil
}

// Checks that the mapping can be expressed as a --volume flag.
func (v VolumeMapping) Validate() error {
	if !filepath.IsAbs(v.HostPath) || !filepath.IsAbs(v.GuestPath) {
		return fmt.Errorf("%w: %w: paths must be absolute: %s -> %s", ErrInvalidVolume, errdefs.ErrInvalidArgument, v.HostPath, v.GuestPath)
	}
	if strings.Contains(v.HostPath, volumeSeparator) {
		return fmt.Errorf("%w: %w: host path contains %q: %s", ErrInvalidVolume, errdefs.ErrInvalidArgument, volumeSeparator, v.HostPath)
	}
	if strings.Contains(v.GuestPath, volumeSeparator) {
		return fmt.Errorf("%w: %w: guest path contains %q: %s", ErrInvalidVolume, errdefs.ErrInvalidArgument, volumeSeparator, v.GuestPath)
	}
	if v.Mode != ReadOnly && v.Mode != ReadWrite {
		return fmt.Errorf("%w: %w: unknown mode %d", ErrInvalidVolume, errdefs.ErrInvalidArgument, v.Mode)
	}
	return nil
}

// Returns the value of the --volume flag.
func (v VolumeMapping) flag() string {
	return v.HostPath + volumeSeparator + v.GuestPath + volumeSeparator + v.Mode.option()
}

// An environment variable passed into the container.
type EnvVar struct {
	Name  string
	Value string
}

// Checks that the variable can be expressed as a --env flag.
func (e EnvVar) Validate() error {
	if e.Name == "" || strings.ContainsAny(e.Name, "= \t\n") {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEnv, errdefs.ErrInvalidArgument, e.Name)
	}
	return nil
}

// Options of a single container run.
type LaunchConfig struct {
	Timeout time.Duration   // Wall-clock limit; zero means none.
	Volumes []VolumeMapping // Bind mounts, in order.
	Env     []EnvVar        // Environment variables, in order.
}

// Checks every volume and environment variable.
func (c LaunchConfig) Validate() error {
	for _, v := range c.Volumes {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	for _, e := range c.Env {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Returns the --volume and --env flags for the configuration.
func (c LaunchConfig) flags() []string {
	args := make([]string, 0, 2*(len(c.Volumes)+len(c.Env)))
	for _, v := range c.Volumes {
		args = append(args, "--volume", v.flag())
	}
	for _, e := range c.Env {
		args = append(args, "--env", e.Name+"="+e.Value)
	}
	return args
}
