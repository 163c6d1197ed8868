package archive

import "errors"

var (
	ErrArchive          = errors.New("archive error")
	ErrIncompatible     = errors.New("archive built for another platform")
	ErrMalformed        = errors.New("malformed archive")
	ErrUnsupportedEntry = errors.New("unsupported file type")
)
