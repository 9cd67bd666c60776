package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutdb/pkg/columnar"
	"mutdb/pkg/types"
)

func TestAccountSchema(t *testing.T) {
	tbl, err := NewTable()
	require.NoError(t, err)

	assert.Equal(t, []string{types.IDColumn, types.DeletedColumn, AmountColumn, CurrencyColumn}, tbl.Schema().Names())

	kind, ok := tbl.Schema().KindOf(CurrencyColumn)
	require.True(t, ok)
	assert.Equal(t, columnar.KindString, kind)

	a := Account{ID: "acc-1", Amount: 100, Currency: "EUR"}
	decoded, err := tbl.DecodeRow(tbl.EncodeRow(a))
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
	assert.Equal(t, "acc-1", decoded.RowID())
}

func TestFilter_Predicates(t *testing.T) {
	tbl, err := NewTable()
	require.NoError(t, err)
	tbl.AddAll([]Account{
		{ID: "a", Amount: 5, Currency: "USD"},
		{ID: "b", Amount: 50, Currency: "EUR"},
		{ID: "c", Amount: 500, Currency: "USD"},
		{ID: "d", Amount: 50, Currency: "USD", Deleted: types.Deleted},
	})

	ids := func(f Filter) []string {
		var out []string
		require.NoError(t, tbl.Select(f.Predicates(), func(pos int) bool {
			out = append(out, tbl.Row(pos).ID)
			return true
		}))
		return out
	}

	lo, hi := int64(10), int64(100)
	assert.Equal(t, []string{"a", "b", "c"}, ids(Filter{}))
	assert.Equal(t, []string{"a", "c"}, ids(Filter{Currency: "USD"}))
	assert.Equal(t, []string{"b"}, ids(Filter{Min: &lo, Max: &hi}))
	assert.Equal(t, []string{"b", "c"}, ids(Filter{Min: &lo}))
	assert.Equal(t, []string{"a"}, ids(Filter{Currency: "USD", Max: &hi}))
}
