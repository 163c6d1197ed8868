package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/containerd/errdefs"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		output    string
		supported string
		wantErr   bool
	}{
		{
			name:      "podman match",
			tool:      "podman",
			output:    "podman version 3.4.4\n",
			supported: "3.4",
		},
		{
			name:      "buildah match",
			tool:      "buildah",
			output:    "buildah version 1.9.0 (image-spec 1.0.0, runtime-spec 1.0.0)\n",
			supported: "1.9",
		},
		{
			name:      "case insensitive",
			tool:      "podman",
			output:    "Podman Version 3.4.2",
			supported: "3.4",
		},
		{
			name:      "newer minor",
			tool:      "podman",
			output:    "podman version 3.5.0",
			supported: "3.4",
			wantErr:   true,
		},
		{
			name:      "prefix is not a match",
			tool:      "podman",
			output:    "podman version 3.40.1",
			supported: "3.4",
			wantErr:   true,
		},
		{
			name:      "unrecognized",
			tool:      "podman",
			output:    "something else entirely",
			supported: "3.4",
			wantErr:   true,
		},
		{
			name:      "no minor",
			tool:      "podman",
			output:    "podman version 3",
			supported: "3.4",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkVersion(tt.tool, tt.output, tt.supported)
			if !tt.wantErr {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if !errors.Is(err, ErrConfiguration) || !errdefs.IsFailedPrecondition(err) {
				t.Fatalf("err = %v, want ErrConfiguration and failed precondition", err)
			}
		})
	}
}

func TestVersionCheckNotInstalled(t *testing.T) {
	fx := newFakeExecutor()
	fx.err = errors.New("executable file not found")
	p := newPodman(Options{Binary: "podman", Version: "3.4", Executor: fx})

	if err := p.VersionCheck(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestVersionCheckNonzeroExit(t *testing.T) {
	fx := newFakeExecutor()
	fx.results["--version"] = &ExecResult{ExitCode: 2, Stderr: []byte("bad flag")}
	b := newBuildah(Options{Binary: "buildah", Version: "1.9", Executor: fx})

	err := b.VersionCheck(context.Background())
	var pe *ProcessError
	if !errors.As(err, &pe) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want *ProcessError wrapping ErrConfiguration", err)
	}
}

func TestVersionCheckArgs(t *testing.T) {
	fx := newFakeExecutor()
	fx.results["--version"] = &ExecResult{Stdout: []byte("podman version 3.4.4")}
	p := newPodman(Options{Binary: "/usr/bin/podman", Version: "3.4", Executor: fx})

	if err := p.VersionCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fx.commands) != 1 || fx.commands[0].Name != "/usr/bin/podman" {
		t.Fatalf("commands = %+v", fx.commands)
	}
}
