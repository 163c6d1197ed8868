package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Global flags pinning podman's storage to the environment directory.
var podmanGlobalArgs = []string{"--root", "root/", "--runroot", "runroot/"}

// The podman backend.
type Podman struct {
	binary  string   // Podman binary.
	version string   // Supported major.minor version.
	exec    Executor // Subprocess executor.
}

// Creates a podman backend. Options are expected to be defaulted by [New].
func newPodman(opts Options) *Podman {
	return &Podman{
		binary:  opts.Binary,
		version: opts.Version,
		exec:    opts.Executor,
	}
}

// Returns [KindPodman].
func (p *Podman) Kind() Kind {
	return KindPodman
}

// Runs "podman --version" and requires the pinned major.minor version.
func (p *Podman) VersionCheck(ctx context.Context) error {
	return versionCheck(ctx, p.exec, string(KindPodman), p.binary, p.version)
}

// Builds the Dockerfile staged in envDir with host networking.
func (p *Podman) BuildImage(ctx context.Context, envDir, imageName string) error {
	if err := prepareEnvironment(envDir); err != nil {
		return err
	}
	if err := checkRecipe(envDir); err != nil {
		return err
	}

	_, err := mustExecute(ctx, p.exec, ErrBuild, p.command(envDir, 0,
		"build", "--network=host", "--tag", ImageTag(imageName), "--label", titleLabel(imageName), "--file", RecipeFile, ".",
	))
	if err != nil {
		return err
	}

	slog.Debug("image built", "backend", KindPodman, "image", ImageTag(imageName), "env", envDir)
	return nil
}

// Lists images in envDir's storage and looks for the qualified tag.
func (p *Podman) ImageExists(ctx context.Context, envDir, imageName string) (bool, error) {
	if err := prepareEnvironment(envDir); err != nil {
		return false, err
	}

	res, err := mustExecute(ctx, p.exec, ErrRuntime, p.command(envDir, 0,
		"image", "list", "--noheading", "--no-trunc", "--format", "json",
	))
	if err != nil {
		return false, err
	}

	return listingHasTag(res.Stdout, QualifiedImageTag(imageName))
}

// Runs command in an ephemeral container sharing the host's network and
// process namespaces.
func (p *Podman) Run(ctx context.Context, envDir, imageName string, command []string, cfg LaunchConfig) error {
	if err := checkCommand(command); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}
	if err := prepareEnvironment(envDir); err != nil {
		return err
	}

	_, err := mustExecute(ctx, p.exec, ErrRun, p.command(envDir, cfg.Timeout, runArgs(imageName, command, cfg)...))
	return err
}

// Returns the arguments of the run subcommand.
func runArgs(imageName string, command []string, cfg LaunchConfig) []string {
	args := []string{
		"run",
		"--rm",
		"--network=host",
		"--pid=host",
		"--stop-signal=SIGKILL",
		"--restart=no",
	}
	args = append(args, cfg.flags()...)
	args = append(args, ImageTag(imageName))
	return append(args, command...)
}

// Returns a podman invocation scoped to envDir.
func (p *Podman) command(envDir string, timeout time.Duration, args ...string) Command {
	return Command{
		Dir:     envDir,
		Name:    p.binary,
		Args:    append(slices.Clone(podmanGlobalArgs), args...),
		Timeout: timeout,
	}
}
