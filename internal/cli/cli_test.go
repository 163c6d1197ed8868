package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"

	"github.com/cruciblehq/snippetd/internal/engine"
	"github.com/cruciblehq/snippetd/internal/runtime"
	"github.com/cruciblehq/snippetd/internal/settings"
)

func TestParseOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(file, []byte{0xff, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		raw     string
		want    engine.Override
		wantErr bool
	}{
		{name: "text", raw: "run.sh=echo hi", want: engine.Text("run.sh", "echo hi")},
		{name: "text with equals", raw: "a=b=c", want: engine.Text("a", "b=c")},
		{name: "empty text", raw: "empty=", want: engine.Text("empty", "")},
		{name: "file", raw: "data.bin=@" + file, want: engine.Binary("data.bin", []byte{0xff, 0x00})},
		{name: "missing file", raw: "x=@" + file + ".missing", wantErr: true},
		{name: "no separator", raw: "run.sh", wantErr: true},
		{name: "empty path", raw: "=text", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOverride(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, engine.ErrInvalidRequest) {
					t.Fatalf("err = %v, want ErrInvalidRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("override mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunCmdParse(t *testing.T) {
	setup := t.TempDir()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	var root struct {
		Globals
		Run RunCmd `cmd:""`
	}
	parser, err := kong.New(&root,
		kong.Vars{"config": "config.yaml"},
		kong.Exit(func(int) { t.Fatal("parser exited") }),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{
		"--debug",
		"run",
		"--name", "python",
		"--setup", setup,
		"--input", input,
		"--output", output,
		"--timeout", "90s",
		"--override", "run.sh=print(1)",
		"-e", "B=2",
		"-e", "A=1",
		"python3", "/input/run.py",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !root.Debug {
		t.Error("--debug not set")
	}
	if root.Run.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", root.Run.Timeout)
	}

	req, err := root.Run.request()
	if err != nil {
		t.Fatal(err)
	}
	want := engine.Request{
		FriendlyName: "python",
		SetupDir:     setup,
		InputDir:     input,
		OutputDir:    output,
		Command:      []string{"python3", "/input/run.py"},
		Overrides:    []engine.Override{engine.Text("run.sh", "print(1)")},
		Env:          []runtime.EnvVar{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCmdApply(t *testing.T) {
	machine := t.TempDir()
	old := t.TempDir()

	c := RunCmd{Machine: machine, Old: old, Timeout: time.Minute}
	s := settings.Default()
	if err := c.apply(s); err != nil {
		t.Fatal(err)
	}

	if s.Cache.Machine != machine || s.Cache.Old != old || s.Cache.New != "" {
		t.Errorf("cache = %+v", s.Cache)
	}
	if time.Duration(s.Run.Timeout) != time.Minute {
		t.Errorf("timeout = %v, want 1m", time.Duration(s.Run.Timeout))
	}
}

func TestRunCmdApplyInvalid(t *testing.T) {
	c := RunCmd{Timeout: -time.Second}
	if err := c.apply(settings.Default()); !errors.Is(err, settings.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestGlobalsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("runtime:\n  backend: buildah\n"), 0644); err != nil {
		t.Fatal(err)
	}

	g := Globals{Config: path}
	s, err := g.settings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Runtime.Backend != string(runtime.KindBuildah) {
		t.Errorf("backend = %q, want buildah", s.Runtime.Backend)
	}
}
