package database

import "errors"

// ErrUnknownDriver is returned when a driver name is not supported.
var ErrUnknownDriver = errors.New("unknown database driver")
