package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cruciblehq/snippetd/internal/archive"
	"github.com/cruciblehq/snippetd/internal/build"
	"github.com/cruciblehq/snippetd/internal/paths"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Represents the 'snippetd archive' command.
type ArchiveCmd struct {
	Name  string `short:"n" required:"" help:"Friendly name of the setup directory."`
	Setup string `required:"" type:"existingdir" help:"Setup directory holding the Dockerfile."`
	Out   string `required:"" type:"path" help:"Archive to write. Must not exist." placeholder:"FILE"`
}

// Executes the archive command.
//
// The environment is built first when the machine cache does not hold it.
func (c *ArchiveCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}

	backend, err := runtime.New(s.RuntimeOptions())
	if err != nil {
		return err
	}
	if err := backend.VersionCheck(ctx); err != nil {
		return err
	}

	res, err := build.Ensure(ctx, build.Options{
		Backend:      backend,
		Layout:       s.Layout(),
		FriendlyName: c.Name,
		SetupDir:     c.Setup,
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(c.Out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, paths.DefaultFileMode)
	if err != nil {
		return err
	}

	if err := archive.Pack(ctx, res.EnvDir, f); err != nil {
		f.Close()
		os.Remove(c.Out)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(c.Out)
		return err
	}

	slog.Info("environment archived", "name", c.Name, "hash", res.ContainerHash, "file", c.Out)
	return nil
}

// Represents the 'snippetd restore' command.
type RestoreCmd struct {
	File string `arg:"" type:"existingfile" help:"Archive written by 'snippetd archive'."`
}

// Executes the restore command.
func (c *RestoreCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := archive.Unpack(ctx, f, s.Layout())
	if err != nil {
		return err
	}

	fmt.Println(res.EnvDir)
	return nil
}
