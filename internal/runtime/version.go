package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/containerd/errdefs"
)

// Runs "<binary> --version" and checks the reported version against the
// supported major.minor prefix.
func versionCheck(ctx context.Context, x Executor, name, binary, supported string) error {
	c := Command{Name: binary, Args: []string{"--version"}}

	res, err := x.Execute(ctx, c)
	if err != nil {
		return fmt.Errorf("%w: %s check failed, is it installed? %w", ErrConfiguration, name, err)
	}
	if res.ExitCode != 0 {
		return newProcessError(ErrConfiguration, c, res)
	}

	return checkVersion(name, string(res.Stdout), supported)
}

// Parses "<name> version <X>" and requires X's major.minor to equal
// supported.
func checkVersion(name, output, supported string) error {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + ` version ([^\s]+)`)

	m := re.FindStringSubmatch(output)
	if m == nil {
		return fmt.Errorf("%w: %w: unrecognized %s version string: %q", ErrConfiguration, errdefs.ErrFailedPrecondition, name, strings.TrimSpace(output))
	}

	if got := majorMinor(m[1]); got != supported {
		return fmt.Errorf("%w: %w: unsupported %s version %s (want %s.x)", ErrConfiguration, errdefs.ErrFailedPrecondition, name, m[1], supported)
	}

	return nil
}

// Returns the "major.minor" prefix of a version, or "" if it has none.
func majorMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}
