package runtime

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Records every command and answers from a script keyed by the first
// argument after the global flags.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []Command
	results  map[string]*ExecResult
	err      error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]*ExecResult{}}
}

func (f *fakeExecutor) Execute(_ context.Context, c Command) (*ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, c)
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[subcommand(c.Args)]; ok {
		return res, nil
	}
	return &ExecResult{}, nil
}

// Returns the recorded commands whose subcommand is name.
func (f *fakeExecutor) calls(name string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Command
	for _, c := range f.commands {
		if subcommand(c.Args) == name {
			out = append(out, c)
		}
	}
	return out
}

// Returns the first argument that is neither a global flag nor its value.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--") && slices.Contains(buildahGlobalArgs, a) {
			i++
			continue
		}
		return a
	}
	return ""
}
