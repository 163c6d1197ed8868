package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/oklog/ulid/v2"
)

// Global flags pinning buildah's storage and registry configuration to the
// environment directory.
var buildahGlobalArgs = []string{
	"--root", "root/",
	"--runroot", "runroot/",
	"--registries-conf", "conf/registries.conf",
	"--registries-conf-dir", "conf/registries.d",
}

// Registry configuration written into new buildah environments.
const registriesConf = `[registries.search]
registries = ['docker.io', 'registry.fedoraproject.org', 'quay.io', 'registry.access.redhat.com', 'registry.centos.org']

[registries.insecure]
registries = []

[registries.block]
registries = []
`

// The buildah backend.
//
// Buildah has no ephemeral run: each run creates a working container from
// the image, runs the command in it, and removes it. The pinned version has
// no way to pass environment variables into a run, so runs requesting any
// are rejected.
type Buildah struct {
	binary  string   // Buildah binary.
	version string   // Supported major.minor version.
	exec    Executor // Subprocess executor.
}

// Creates a buildah backend. Options are expected to be defaulted by [New].
func newBuildah(opts Options) *Buildah {
	return &Buildah{
		binary:  opts.Binary,
		version: opts.Version,
		exec:    opts.Executor,
	}
}

// Returns [KindBuildah].
func (b *Buildah) Kind() Kind {
	return KindBuildah
}

// Runs "buildah --version" and requires the pinned major.minor version.
func (b *Buildah) VersionCheck(ctx context.Context) error {
	return versionCheck(ctx, b.exec, string(KindBuildah), b.binary, b.version)
}

// Builds the Dockerfile staged in envDir.
func (b *Buildah) BuildImage(ctx context.Context, envDir, imageName string) error {
	if err := b.prepare(envDir); err != nil {
		return err
	}
	if err := checkRecipe(envDir); err != nil {
		return err
	}

	_, err := mustExecute(ctx, b.exec, ErrBuild, b.command(envDir, 0,
		"build-using-dockerfile", "--network=host", "--tag", ImageTag(imageName), "--label", titleLabel(imageName), "--file", RecipeFile, ".",
	))
	if err != nil {
		return err
	}

	slog.Debug("image built", "backend", KindBuildah, "image", ImageTag(imageName), "env", envDir)
	return nil
}

// Lists images in envDir's storage and looks for the qualified tag.
func (b *Buildah) ImageExists(ctx context.Context, envDir, imageName string) (bool, error) {
	if err := b.prepare(envDir); err != nil {
		return false, err
	}

	res, err := mustExecute(ctx, b.exec, ErrRuntime, b.command(envDir, 0, "images", "--json"))
	if err != nil {
		return false, err
	}

	return listingHasTag(res.Stdout, QualifiedImageTag(imageName))
}

// Runs command in a working container created for this run only.
//
// The working container is removed afterwards whether or not the command
// succeeded; a failure to remove it is logged and otherwise ignored.
func (b *Buildah) Run(ctx context.Context, envDir, imageName string, command []string, cfg LaunchConfig) error {
	if err := checkCommand(command); err != nil {
		return err
	}
	if len(cfg.Env) > 0 {
		return fmt.Errorf("%w: %w: %w: environment variables", ErrRun, ErrUnsupported, errdefs.ErrNotImplemented)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}
	if err := b.prepare(envDir); err != nil {
		return err
	}

	ctr := workingContainerName(imageName)
	if _, err := mustExecute(ctx, b.exec, ErrRun, b.command(envDir, 0,
		"from", "--name", ctr, QualifiedImageTag(imageName),
	)); err != nil {
		return err
	}
	defer b.remove(context.WithoutCancel(ctx), envDir, ctr)

	args := []string{"run"}
	args = append(args, cfg.flags()...)
	args = append(args, ctr, "--")
	args = append(args, command...)

	_, err := mustExecute(ctx, b.exec, ErrRun, b.command(envDir, cfg.Timeout, args...))
	return err
}

// Removes a working container, logging failures.
func (b *Buildah) remove(ctx context.Context, envDir, ctr string) {
	if _, err := mustExecute(ctx, b.exec, ErrRuntime, b.command(envDir, 0, "rm", ctr)); err != nil {
		slog.Warn("failed to remove working container", "container", ctr, "error", err)
	}
}

// Creates the environment directory, its storage directories, and the
// registry configuration if absent.
func (b *Buildah) prepare(envDir string) error {
	if err := prepareEnvironment(envDir); err != nil {
		return err
	}

	conf := filepath.Join(envDir, confDir)
	if err := os.MkdirAll(filepath.Join(conf, "registries.d"), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	f, err := os.OpenFile(filepath.Join(conf, "registries.conf"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer f.Close()

	if _, err := f.WriteString(registriesConf); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return nil
}

// Returns a buildah invocation scoped to envDir.
func (b *Buildah) command(envDir string, timeout time.Duration, args ...string) Command {
	return Command{
		Dir:     envDir,
		Name:    b.binary,
		Args:    append(slices.Clone(buildahGlobalArgs), args...),
		Timeout: timeout,
	}
}

// Returns a unique working container name for a run of imageName.
func workingContainerName(imageName string) string {
	return imageName + "_" + strings.ToLower(ulid.Make().String())
}
