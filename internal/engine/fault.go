package engine

import (
	"errors"

	"github.com/containerd/errdefs"

	"github.com/cruciblehq/snippetd/internal/build"
	"github.com/cruciblehq/snippetd/internal/runtime"
)

// Class of a failed request, for callers that report rather than inspect
// errors.
type Fault string

const (
	FaultConfiguration Fault = "configuration" // Runtime missing or unsupported, or bad configuration.
	FaultInvalid       Fault = "invalid"       // The request itself is malformed.
	FaultIntegrity     Fault = "integrity"     // Cache or input state that must not be worked around.
	FaultBuild         Fault = "build"         // The image failed to build.
	FaultRun           Fault = "run"           // The container exited unsuccessfully or timed out.
	FaultInternal      Fault = "internal"      // Anything else.
)

// Returns the class of err.
func Classify(err error) Fault {
	switch {
	case errors.Is(err, ErrIntegrity):
		return FaultIntegrity
	case errors.Is(err, ErrConfiguration), errors.Is(err, runtime.ErrConfiguration):
		return FaultConfiguration
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, build.ErrInvalidName), errors.Is(err, build.ErrReservedName):
		return FaultInvalid
	case errors.Is(err, runtime.ErrBuild), errors.Is(err, build.ErrBuild):
		return FaultBuild
	case errors.Is(err, runtime.ErrRun):
		return FaultRun
	case errdefs.IsInvalidArgument(err):
		return FaultInvalid
	default:
		return FaultInternal
	}
}
