package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/containerd/errdefs"

	"github.com/cruciblehq/snippetd/internal/engine"
	"github.com/cruciblehq/snippetd/internal/runtime"
	"github.com/cruciblehq/snippetd/internal/settings"
)

// Represents the 'snippetd run' command.
type RunCmd struct {
	Name      string            `short:"n" required:"" help:"Friendly name of the setup directory."`
	Setup     string            `required:"" type:"existingdir" help:"Setup directory holding the Dockerfile."`
	Input     string            `short:"i" required:"" type:"existingdir" help:"Input directory, mounted read-only at /input."`
	Output    string            `short:"o" required:"" type:"path" help:"Empty output directory, mounted at /output."`
	Old       string            `type:"path" help:"Root of the old-render cache tier." placeholder:"DIR"`
	New       string            `type:"path" help:"Root of the new-render cache tier." placeholder:"DIR"`
	Machine   string            `type:"path" help:"Root of the machine cache tier." placeholder:"DIR"`
	Timeout   time.Duration     `help:"Run timeout, such as 30s."`
	Overrides []string          `name:"override" sep:"none" help:"Replace a file in a copy of the input. REL=TEXT writes text, REL=@FILE copies a file." placeholder:"REL=TEXT|REL=@FILE"`
	Env       map[string]string `short:"e" help:"Environment variable passed into the container." placeholder:"NAME=VALUE"`
	Command   []string          `arg:"" optional:"" passthrough:"" help:"Command to run. Defaults to 'sh /input/run.sh'."`
}

// Executes the run command in-process.
func (c *RunCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}
	if err := c.apply(s); err != nil {
		return err
	}

	req, err := c.request()
	if err != nil {
		return err
	}

	helper, _, err := newEngine(ctx, s)
	if err != nil {
		return err
	}

	res, err := helper.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("source\t%s\n", res.Source)
	fmt.Printf("data\t%s\n", res.DataHash)
	fmt.Printf("output\t%s\n", res.OutputDir)
	if res.CacheDir != "" {
		fmt.Printf("cache\t%s\n", res.CacheDir)
	}
	return nil
}

// Overrides configuration values with the command's flags.
func (c *RunCmd) apply(s *settings.Settings) error {
	if c.Machine != "" {
		s.Cache.Machine = c.Machine
	}
	if c.Old != "" {
		s.Cache.Old = c.Old
	}
	if c.New != "" {
		s.Cache.New = c.New
	}
	if c.Timeout != 0 {
		s.Run.Timeout = settings.Duration(c.Timeout)
	}
	return s.Validate()
}

// Returns the engine request described by the command's flags.
func (c *RunCmd) request() (engine.Request, error) {
	req := engine.Request{
		FriendlyName: c.Name,
		SetupDir:     c.Setup,
		InputDir:     c.Input,
		OutputDir:    c.Output,
		Command:      c.Command,
	}

	for _, raw := range c.Overrides {
		o, err := parseOverride(raw)
		if err != nil {
			return engine.Request{}, err
		}
		req.Overrides = append(req.Overrides, o)
	}

	for _, name := range slices.Sorted(maps.Keys(c.Env)) {
		req.Env = append(req.Env, runtime.EnvVar{Name: name, Value: c.Env[name]})
	}
	return req, nil
}

// Parses an override flag of the form REL=TEXT or REL=@FILE.
func parseOverride(raw string) (engine.Override, error) {
	rel, value, ok := strings.Cut(raw, "=")
	if !ok || rel == "" {
		return engine.Override{}, fmt.Errorf("%w: %w: override %q is not REL=TEXT or REL=@FILE", engine.ErrInvalidRequest, errdefs.ErrInvalidArgument, raw)
	}

	file, ok := strings.CutPrefix(value, "@")
	if !ok {
		return engine.Text(rel, value), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return engine.Override{}, fmt.Errorf("%w: override %s: %w", engine.ErrInvalidRequest, rel, err)
	}
	return engine.Binary(rel, data), nil
}
