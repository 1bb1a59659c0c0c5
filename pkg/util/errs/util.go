package errs

import (
	"errors"
)

var (
	ErrMissingConfig = errors.New("config is missing")
)
