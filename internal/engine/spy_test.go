package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cruciblehq/snippetd/internal/runtime"
)

// A backend that records calls and emulates containers in process.
//
// Runs execute emulate against the host paths mounted at /input and
// /output. The default emulation understands "sh /input/run.sh" scripts
// made of lines of the form "echo TEXT > /output/FILE".
type spyBackend struct {
	mu         sync.Mutex
	images     map[string]bool
	builds     int
	runs       int
	markers    []string // Marker file content seen by each run.
	versionErr error
	runErr     error
	emulate    func(input, output string, command []string) error
}

func newSpyBackend() *spyBackend {
	return &spyBackend{images: map[string]bool{}, emulate: emulateShell}
}

func (s *spyBackend) Kind() runtime.Kind {
	return runtime.KindPodman
}

func (s *spyBackend) VersionCheck(context.Context) error {
	return s.versionErr
}

func (s *spyBackend) BuildImage(_ context.Context, envDir, imageName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(filepath.Join(envDir, runtime.RecipeFile)); err != nil {
		return fmt.Errorf("%w: %w", runtime.ErrBuild, err)
	}
	s.builds++
	s.images[envDir+"|"+imageName] = true
	return nil
}

func (s *spyBackend) ImageExists(_ context.Context, envDir, imageName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[envDir+"|"+imageName], nil
}

func (s *spyBackend) Run(_ context.Context, envDir, imageName string, command []string, cfg runtime.LaunchConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.images[envDir+"|"+imageName] {
		return fmt.Errorf("%w: image %s not built", runtime.ErrRun, imageName)
	}
	s.runs++

	var input, output string
	for _, v := range cfg.Volumes {
		switch v.GuestPath {
		case InputMount:
			input = v.HostPath
		case OutputMount:
			output = v.HostPath
		}
	}

	if b, err := os.ReadFile(filepath.Join(input, DefaultMarkerFilename)); err == nil {
		s.markers = append(s.markers, string(b))
	}

	if s.runErr != nil {
		return s.runErr
	}
	return s.emulate(input, output, command)
}

// Emulates "sh /input/run.sh" for scripts of echo redirections.
func emulateShell(input, output string, command []string) error {
	if len(command) != 2 || command[0] != "sh" || !strings.HasPrefix(command[1], InputMount+"/") {
		return fmt.Errorf("%w: cannot emulate %q", runtime.ErrRun, command)
	}

	script, err := os.ReadFile(filepath.Join(input, strings.TrimPrefix(command[1], InputMount+"/")))
	if err != nil {
		return fmt.Errorf("%w: %w", runtime.ErrRun, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(script)), "\n") {
		text, file, ok := strings.Cut(strings.TrimPrefix(line, "echo "), " > "+OutputMount+"/")
		if !ok {
			return fmt.Errorf("%w: cannot emulate %q", runtime.ErrRun, line)
		}
		if err := os.WriteFile(filepath.Join(output, file), []byte(text+"\n"), 0644); err != nil {
			return fmt.Errorf("%w: %w", runtime.ErrRun, err)
		}
	}
	return nil
}
