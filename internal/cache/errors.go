package cache

import "errors"

var (
	ErrCache               = errors.New("cache error")
	ErrConfiguration       = errors.New("invalid cache layout")
	ErrIntegrity           = errors.New("cache integrity fault")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrUnsupportedEntry    = errors.New("unsupported file type")
)
