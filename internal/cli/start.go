package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/snippetd/internal/server"
)

// Represents the 'snippetd start' command.
type StartCmd struct {
	Socket string `short:"s" type:"path" help:"Override the default Unix socket path." placeholder:"PATH"`
}

// Executes the start command.
//
// Starts the server on a Unix domain socket and blocks until the context is
// cancelled (e.g. via SIGINT or SIGTERM) or a client requests shutdown.
func (c *StartCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.settings()
	if err != nil {
		return err
	}

	helper, backend, err := newEngine(ctx, s)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		SocketPath: c.Socket,
		Backend:    backend.Kind(),
	}, helper)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("snippetd is running")

	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
	case <-stopped:
	}

	slog.Info("shutting down")
	return srv.Stop()
}
