package types

// Offset is the physical position of a row in the columnar store.
// Offsets are assigned on append, grow monotonically and are never reused.
type Offset = int

// SeqN is the sequence number of an accepted mutation. Numbering starts at 1;
// zero means "nothing applied yet".
type SeqN = uint64

// RowID is the stable logical identifier of a row.
type RowID = string

const (
	// IDColumn is the mandatory string column holding RowID.
	IDColumn = "id"
	// DeletedColumn is the mandatory single-byte soft-delete flag column.
	DeletedColumn = "deleted"
)

const (
	// Live marks a row that is visible through the position index.
	Live byte = 0
	// Deleted marks a soft-deleted row; its slot is never reclaimed.
	Deleted byte = 1
)
