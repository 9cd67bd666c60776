package columnar

import "cmp"

// Predicate filters rows during Select. Predicates are bound to columns by
// name when Select starts.
type Predicate interface {
	compile(cols columnSet) (func(pos int) bool, error)
}

type in[E Elem] struct {
	column string
	kind   Kind
	set    map[E]struct{}
}

func newIn[E Elem](column string, kind Kind, values []E) *in[E] {
	set := make(map[E]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &in[E]{column: column, kind: kind, set: set}
}

func (p *in[E]) compile(cols columnSet) (func(int) bool, error) {
	v, err := lookup[E](cols, p.column, p.kind)
	if err != nil {
		return nil, err
	}
	return func(pos int) bool {
		_, ok := p.set[v.Data[pos]]
		return ok
	}, nil
}

type between[E int32 | int64 | float64] struct {
	column string
	kind   Kind
	lo, hi E
}

func (p *between[E]) compile(cols columnSet) (func(int) bool, error) {
	v, err := lookup[E](cols, p.column, p.kind)
	if err != nil {
		return nil, err
	}
	return func(pos int) bool {
		x := v.Data[pos]
		return cmp.Compare(x, p.lo) >= 0 && cmp.Compare(x, p.hi) <= 0
	}, nil
}

func ByteIn(column string, values ...byte) Predicate {
	return newIn(column, KindByte, values)
}

func StringIn(column string, values ...string) Predicate {
	return newIn(column, KindString, values)
}

func Int32In(column string, values ...int32) Predicate {
	return newIn(column, KindInt32, values)
}

func Int64In(column string, values ...int64) Predicate {
	return newIn(column, KindInt64, values)
}

func BoolIs(column string, value bool) Predicate {
	return newIn(column, KindBool, []bool{value})
}

// Int64Between matches lo <= x <= hi.
func Int64Between(column string, lo, hi int64) Predicate {
	return &between[int64]{column: column, kind: KindInt64, lo: lo, hi: hi}
}

func Int32Between(column string, lo, hi int32) Predicate {
	return &between[int32]{column: column, kind: KindInt32, lo: lo, hi: hi}
}

func Float64Between(column string, lo, hi float64) Predicate {
	return &between[float64]{column: column, kind: KindFloat64, lo: lo, hi: hi}
}

// Select calls fn with the position of every row matching all predicates, in
// position order. Returning false from fn stops the scan.
func (t *Table[T]) Select(preds []Predicate, fn func(pos int) bool) error {
	matchers := make([]func(int) bool, 0, len(preds))
	for _, p := range preds {
		m, err := p.compile(t)
		if err != nil {
			return err
		}
		matchers = append(matchers, m)
	}

	for pos := 0; pos < t.size; pos++ {
		if matchAll(matchers, pos) && !fn(pos) {
			return nil
		}
	}
	return nil
}

func matchAll(matchers []func(int) bool, pos int) bool {
	for _, m := range matchers {
		if !m(pos) {
			return false
		}
	}
	return true
}
