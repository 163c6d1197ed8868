package hashdir

import "errors"

var (
	ErrHash             = errors.New("hash failed")
	ErrNotAbsolute      = errors.New("path is not absolute")
	ErrNotDirectory     = errors.New("not a directory")
	ErrUnsupportedEntry = errors.New("unsupported directory entry")
)
