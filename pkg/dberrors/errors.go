package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("mutdb: not found")
	ErrClosed          = errors.New("mutdb: closed")
	ErrInvalidArgument = errors.New("mutdb: invalid argument")
	ErrSchema          = errors.New("mutdb: schema error")
	ErrCorrupt         = errors.New("mutdb: corrupt data")
)
