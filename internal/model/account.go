package model

import (
	"mutdb/pkg/columnar"
	"mutdb/pkg/types"
)

// Account is the row type served by the mutdb binary.
type Account struct {
	ID       string `col:"id" json:"id"`
	Deleted  byte   `col:"deleted" json:"-"`
	Amount   int64  `col:"amount" json:"amount"`
	Currency string `col:"currency" json:"currency"`
}

func (a Account) RowID() types.RowID {
	return a.ID
}

// Column names of Account.
const (
	AmountColumn   = "amount"
	CurrencyColumn = "currency"
)

// NewTable returns an empty Account table.
func NewTable(opts ...columnar.Option) (*columnar.Table[Account], error) {
	return columnar.New[Account](opts...)
}
