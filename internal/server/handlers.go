package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"os"
	"slices"
	"time"

	"github.com/containerd/errdefs"

	"github.com/cruciblehq/snippetd/internal"
	"github.com/cruciblehq/snippetd/internal/engine"
	"github.com/cruciblehq/snippetd/internal/hashdir"
	"github.com/cruciblehq/snippetd/internal/protocol"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Handles a run command.
func (s *Server) handleRun(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	msg, err := protocol.DecodePayload[protocol.RunRequest](payload)
	if err != nil {
		s.fail(conn, fmt.Errorf("%w: %w", engine.ErrInvalidRequest, err))
		return
	}

	req, err := toRequest(msg)
	if err != nil {
		s.fail(conn, err)
		return
	}

	res, err := s.engine.Run(ctx, req)
	if err != nil {
		slog.Error("run failed", "name", req.FriendlyName, "error", err)
		s.fail(conn, err)
		return
	}

	s.mu.Lock()
	s.runs++
	if res.Source != engine.SourceRun {
		s.hits++
	}
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.RunResult{
		ContainerHash: res.ContainerHash.String(),
		InputHash:     res.InputHash.String(),
		DataHash:      res.DataHash.String(),
		Source:        string(res.Source),
		OutputDir:     res.OutputDir,
		CacheDir:      res.CacheDir,
	})
}

// Handles a hash command.
func (s *Server) handleHash(conn net.Conn, payload json.RawMessage) {
	msg, err := protocol.DecodePayload[protocol.HashRequest](payload)
	if err != nil {
		s.fail(conn, fmt.Errorf("%w: %w", engine.ErrInvalidRequest, err))
		return
	}

	d, err := hashdir.Directory(msg.Dir)
	if err != nil {
		s.fail(conn, err)
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.HashResult{Digest: d.String()})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	runs, hits := s.runs, s.hits
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Backend: string(s.backend),
		Runs:    runs,
		Hits:    hits,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}

// Converts a wire request into an engine request.
func toRequest(msg *protocol.RunRequest) (engine.Request, error) {
	req := engine.Request{
		FriendlyName: msg.FriendlyName,
		SetupDir:     msg.SetupDir,
		InputDir:     msg.InputDir,
		OutputDir:    msg.OutputDir,
		Command:      msg.Command,
	}

	for _, o := range msg.Overrides {
		if o.Binary != nil {
			req.Overrides = append(req.Overrides, engine.Binary(o.Path, o.Binary))
		} else {
			req.Overrides = append(req.Overrides, engine.Text(o.Path, o.Text))
		}
	}

	for _, v := range msg.Volumes {
		mode := runtime.ReadOnly
		if v.ReadWrite {
			mode = runtime.ReadWrite
		}
		m, err := runtime.NewVolumeMapping(v.HostPath, v.GuestPath, mode)
		if err != nil {
			return engine.Request{}, fmt.Errorf("%w: %w", engine.ErrInvalidRequest, err)
		}
		req.Volumes = append(req.Volumes, m)
	}

	for _, name := range slices.Sorted(maps.Keys(msg.Env)) {
		req.Env = append(req.Env, runtime.EnvVar{Name: name, Value: msg.Env[name]})
	}

	if msg.Timeout != "" {
		d, err := time.ParseDuration(msg.Timeout)
		if err != nil {
			return engine.Request{}, fmt.Errorf("%w: %w: timeout: %w", engine.ErrInvalidRequest, errdefs.ErrInvalidArgument, err)
		}
		req.Timeout = d
	}

	return req, nil
}
