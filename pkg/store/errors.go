package store

import (
	"fmt"

	"mutdb/pkg/dberrors"
)

var (
	ErrClosed     = fmt.Errorf("store: %w", dberrors.ErrClosed)
	ErrNotFound   = fmt.Errorf("row: %w", dberrors.ErrNotFound)
	ErrEmptyRowID = fmt.Errorf("empty row id: %w", dberrors.ErrInvalidArgument)
)
