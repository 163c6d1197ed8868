package runtime

import "errors"

var (
	ErrRuntime       = errors.New("runtime error")
	ErrConfiguration = errors.New("runtime configuration error")
	ErrBuild         = errors.New("image build failed")
	ErrRun           = errors.New("container run failed")
	ErrInvalidVolume = errors.New("invalid volume mapping")
	ErrInvalidEnv    = errors.New("invalid environment variable")
	ErrEmptyCommand  = errors.New("empty command")
	ErrUnsupported   = errors.New("unsupported by backend")
	ErrMissingRecipe = errors.New("missing build recipe")
)
