package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Represents the 'snippetd check' command.
type CheckCmd struct{}

// Executes the check command.
func (c *CheckCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}

	opts := s.RuntimeOptions()
	backend, err := runtime.New(opts)
	if err != nil {
		return err
	}
	if err := backend.VersionCheck(ctx); err != nil {
		return err
	}

	version := opts.Version
	if version == "" {
		version = runtime.PinnedVersion(backend.Kind())
	}
	fmt.Printf("%s %s ok\n", backend.Kind(), version)
	return nil
}
