package model

import (
	"math"

	"mutdb/pkg/columnar"
	"mutdb/pkg/types"
)

// Filter narrows a scan over live accounts. Zero values match everything.
type Filter struct {
	Currency string
	Min      *int64
	Max      *int64
}

func (f Filter) Predicates() []columnar.Predicate {
	preds := []columnar.Predicate{columnar.ByteIn(types.DeletedColumn, types.Live)}

	if f.Currency != "" {
		preds = append(preds, columnar.StringIn(CurrencyColumn, f.Currency))
	}
	if f.Min != nil || f.Max != nil {
		lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
		if f.Min != nil {
			lo = *f.Min
		}
		if f.Max != nil {
			hi = *f.Max
		}
		preds = append(preds, columnar.Int64Between(AmountColumn, lo, hi))
	}

	return preds
}
