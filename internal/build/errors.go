package build

import "errors"

var (
	ErrBuild               = errors.New("environment build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrInvalidName         = errors.New("invalid friendly name")
	ErrReservedName        = errors.New("setup directory uses a reserved name")
	ErrMetadata            = errors.New("invalid environment metadata")
)
