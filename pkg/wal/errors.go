package wal

import (
	"errors"
	"fmt"

	"mutdb/pkg/dberrors"
)

var (
	ErrClosed        = fmt.Errorf("commit log: %w", dberrors.ErrClosed)
	ErrCorruptRecord = fmt.Errorf("commit log record: %w", dberrors.ErrCorrupt)
	ErrBroken        = errors.New("commit log: unusable after failed rollback")
)
