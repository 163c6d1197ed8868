package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/containerd/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Identifies a container runtime backend.
type Kind string

const (
	KindPodman  Kind = "podman"
	KindBuildah Kind = "buildah"
)

// Major.minor versions each backend is pinned to.
var pinnedVersions = map[Kind]string{
	KindPodman:  "3.4",
	KindBuildah: "1.9",
}

// Returns the major.minor version the backend is pinned to.
func PinnedVersion(k Kind) string {
	return pinnedVersions[k]
}

// Name of the build recipe expected in an environment directory.
const RecipeFile = "Dockerfile"

// Subdirectories of an environment directory owned by the runtime tool.
var storageDirs = []string{"root", "runroot"}

// Directory of the registry configuration of the buildah backend.
const confDir = "conf"

// Returns the names of environment directory entries owned by the runtime.
//
// Files staged into an environment directory must not use them.
func ReservedNames() []string {
	return append(slices.Clone(storageDirs), confDir)
}

// A container runtime command-line tool.
//
// Every operation is one or more blocking subprocess calls scoped to the
// storage of envDir. Nothing is retried.
type Backend interface {

	// Returns the backend kind.
	Kind() Kind

	// Verifies that the tool is installed and matches the pinned version.
	VersionCheck(ctx context.Context) error

	// Builds the recipe staged in envDir and tags it "<imageName>_image".
	BuildImage(ctx context.Context, envDir, imageName string) error

	// Reports whether "localhost/<imageName>_image:latest" exists in
	// envDir's storage.
	ImageExists(ctx context.Context, envDir, imageName string) (bool, error)

	// Runs command in a fresh container of the image and waits for it to
	// exit or for the configured timeout to kill it.
	Run(ctx context.Context, envDir, imageName string, command []string, cfg LaunchConfig) error
}

// Selects and configures a backend.
type Options struct {
	Kind     Kind     // Backend kind. Defaults to [KindPodman].
	Binary   string   // Tool binary. Defaults to the kind name.
	Version  string   // Supported major.minor version. Defaults to the pinned version.
	Executor Executor // Subprocess executor. Defaults to [SystemExecutor].
}

// Creates the backend selected by opts.
func New(opts Options) (Backend, error) {
	if opts.Kind == "" {
		opts.Kind = KindPodman
	}
	if _, ok := pinnedVersions[opts.Kind]; !ok {
		return nil, fmt.Errorf("%w: %w: unknown backend %q", ErrConfiguration, errdefs.ErrInvalidArgument, opts.Kind)
	}
	if opts.Binary == "" {
		opts.Binary = string(opts.Kind)
	}
	if opts.Version == "" {
		opts.Version = pinnedVersions[opts.Kind]
	}
	if opts.Executor == nil {
		opts.Executor = SystemExecutor()
	}

	switch opts.Kind {
	case KindBuildah:
		return newBuildah(opts), nil
	default:
		return newPodman(opts), nil
	}
}

// Returns the tag given to images built for imageName.
func ImageTag(imageName string) string {
	return imageName + "_image"
}

// Returns the label identifying an image by its name, using the OCI title
// annotation key.
func titleLabel(imageName string) string {
	return ocispec.AnnotationTitle + "=" + imageName
}

// Returns the fully qualified reference of the image built for imageName.
func QualifiedImageTag(imageName string) string {
	return "localhost/" + ImageTag(imageName) + ":latest"
}

// Creates the environment directory and the runtime's storage directories.
func prepareEnvironment(envDir string) error {
	for _, dir := range storageDirs {
		if err := os.MkdirAll(filepath.Join(envDir, dir), 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}
	return nil
}

// Verifies that the build recipe has been staged in envDir.
func checkRecipe(envDir string) error {
	info, err := os.Stat(filepath.Join(envDir, RecipeFile))
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %w: %s in %s", ErrBuild, ErrMissingRecipe, RecipeFile, envDir)
	}
	return nil
}

// Verifies that a run has something to execute.
func checkCommand(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: %w: %w", ErrRun, ErrEmptyCommand, errdefs.ErrInvalidArgument)
	}
	return nil
}
