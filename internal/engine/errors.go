package engine

import "errors"

var (
	ErrConfiguration       = errors.New("invalid engine configuration")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrIntegrity           = errors.New("integrity fault")
	ErrPathEscape          = errors.New("path escapes its root")
	ErrReservedName        = errors.New("reserved file name")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
