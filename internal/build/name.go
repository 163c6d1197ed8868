package build

import (
	"fmt"
	"regexp"

	"github.com/containerd/errdefs"
)

// Friendly names become part of directory names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Checks that name can be used as a friendly name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidName, errdefs.ErrInvalidArgument, name)
	}
	return nil
}
