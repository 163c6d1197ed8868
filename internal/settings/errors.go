package settings

import "errors"

var (
	ErrConfiguration = errors.New("invalid configuration")
)
