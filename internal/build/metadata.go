package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/snippetd/internal"
	"github.com/cruciblehq/snippetd/internal/paths"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Name of the metadata record in an environment directory.
const MetadataFile = "environment.json"

// Describes the image built in an environment directory.
type Metadata struct {
	FriendlyName  string            `json:"friendlyName"`          // Friendly name of the setup directory.
	ContainerHash digest.Digest     `json:"containerHash"`         // Digest of the setup directory.
	Backend       runtime.Kind      `json:"backend"`               // Backend that built the image.
	Platform      string            `json:"platform"`              // Platform the image was built on.
	Annotations   map[string]string `json:"annotations,omitempty"` // OCI annotations.
}

// Returns the metadata of an image built on this host now.
func NewMetadata(friendlyName string, containerHash digest.Digest, backend runtime.Kind) *Metadata {
	return &Metadata{
		FriendlyName:  friendlyName,
		ContainerHash: containerHash,
		Backend:       backend,
		Platform:      platforms.DefaultString(),
		Annotations: map[string]string{
			ocispec.AnnotationTitle:    friendlyName,
			ocispec.AnnotationRevision: containerHash.String(),
			ocispec.AnnotationCreated:  time.Now().UTC().Format(time.RFC3339),
			ocispec.AnnotationVersion:  internal.Version(),
		},
	}
}

// Checks the fields that identify the environment directory.
func (m *Metadata) Validate() error {
	if err := ValidateName(m.FriendlyName); err != nil {
		return fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if err := m.ContainerHash.Validate(); err != nil {
		return fmt.Errorf("%w: container hash: %w", ErrMetadata, err)
	}
	if _, err := platforms.Parse(m.Platform); err != nil {
		return fmt.Errorf("%w: platform: %w", ErrMetadata, err)
	}
	return nil
}

// Reports whether the image can run on this host.
func (m *Metadata) Compatible() bool {
	p, err := platforms.Parse(m.Platform)
	if err != nil {
		return false
	}
	return platforms.Default().Match(p)
}

// Reads the metadata record of envDir.
func ReadMetadata(envDir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(envDir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	return DecodeMetadata(data)
}

// Decodes and validates a metadata record.
func DecodeMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Writes m into envDir unless a record is already present.
func WriteMetadata(envDir string, m *Metadata) error {
	path := filepath.Join(envDir, MetadataFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}
