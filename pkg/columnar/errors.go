package columnar

import (
	"errors"
	"fmt"

	"mutdb/pkg/dberrors"
)

var (
	ErrBadSnapshot  = fmt.Errorf("%w: bad columnar snapshot", dberrors.ErrCorrupt)
	ErrNoSuchColumn = fmt.Errorf("%w: no such column", dberrors.ErrSchema)
	ErrColumnKind   = fmt.Errorf("%w: unexpected column kind", dberrors.ErrSchema)
	ErrUnsupported  = fmt.Errorf("%w: unsupported row type", dberrors.ErrSchema)
	ErrRowEncoding  = errors.New("columnar: row does not match schema")
)
