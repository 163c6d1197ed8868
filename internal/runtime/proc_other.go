//go:build !unix

package runtime

import (
	"os"
	"os/exec"
)

// Process groups are not available; cancellation kills the direct child.
func configureProcessGroup(cmd *exec.Cmd) {}

func exitSignal(ps *os.ProcessState) string {
	return ""
}
