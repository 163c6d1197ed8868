package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/snippetd/internal"
	"github.com/cruciblehq/snippetd/internal/engine"
	"github.com/cruciblehq/snippetd/internal/paths"
	"github.com/cruciblehq/snippetd/internal/runtime"
	"github.com/cruciblehq/snippetd/internal/settings"
)

// Flags shared by every command.
type Globals struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Config  string `short:"c" type:"path" help:"Configuration file. Defaults to ${config}." placeholder:"PATH"`
}

// Represents the root command for snippetd.
var RootCmd struct {
	Globals

	Start   StartCmd   `cmd:"" help:"Start the daemon."`
	Run     RunCmd     `cmd:"" help:"Render a snippet."`
	Hash    HashCmd    `cmd:"" help:"Print the digest of a directory."`
	Check   CheckCmd   `cmd:"" help:"Check that the container runtime is supported."`
	Archive ArchiveCmd `cmd:"" help:"Build an environment and write it to an archive."`
	Restore RestoreCmd `cmd:"" help:"Restore an archived environment into the machine cache."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Renders code snippets in cached containers.\n\nRuns each snippet's script in a container built from its setup directory and caches the output by content."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
			"config":  paths.ConfigFile(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&RootCmd.Globals),
	)

	configureLogger(&RootCmd.Globals)

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger(g *Globals) {
	internal.SetDebug(g.Debug || internal.IsDebug())
	internal.SetQuiet(g.Quiet || internal.IsQuiet())
	internal.SetVerbose(g.Verbose || internal.IsVerbose())

	slog.SetDefault(internal.NewLogger(os.Stderr))
}

// Loads the configuration file named by --config, or the default one.
func (g *Globals) settings() (*settings.Settings, error) {
	path := g.Config
	if path == "" {
		path = paths.ConfigFile()
	}

	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("configuration loaded", "path", path, "backend", s.Runtime.Backend, "machine", s.Cache.Machine)
	return s, nil
}

// Creates the container runtime and the engine described by s.
func newEngine(ctx context.Context, s *settings.Settings) (*engine.Helper, runtime.Backend, error) {
	backend, err := runtime.New(s.RuntimeOptions())
	if err != nil {
		return nil, nil, err
	}

	helper, err := engine.New(ctx, s.EngineConfig(backend))
	if err != nil {
		return nil, nil, err
	}
	return helper, backend, nil
}
