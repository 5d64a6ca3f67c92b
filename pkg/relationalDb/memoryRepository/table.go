package memoryRepository

import (
	"slices"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type table[K comparable, V any] struct {
	rows  map[K]V
	clone func(V) V
}

func newTable[K comparable, V any](clone func(V) V) *table[K, V] {
	return &table[K, V]{
		rows:  make(map[K]V),
		clone: clone,
	}
}

// pending buffers the writes of one transaction on top of a table.
// A nil entry in writes marks a deletion.
type pending[K comparable, V any] struct {
	table  *table[K, V]
	writes map[K]*V
}

func newPending[K comparable, V any](t *table[K, V]) *pending[K, V] {
	return &pending[K, V]{
		table:  t,
		writes: make(map[K]*V),
	}
}

func (p *pending[K, V]) get(key K) (V, bool) {
	if w, ok := p.writes[key]; ok {
		if w == nil {
			var zero V
			return zero, false
		}
		return p.table.clone(*w), true
	}
	row, ok := p.table.rows[key]
	if !ok {
		var zero V
		return zero, false
	}
	return p.table.clone(row), true
}

func (p *pending[K, V]) put(key K, value V) {
	v := p.table.clone(value)
	p.writes[key] = &v
}

func (p *pending[K, V]) delete(key K) {
	p.writes[key] = nil
}

func (p *pending[K, V]) each(fn func(key K, value V)) {
	for key, row := range p.table.rows {
		if _, ok := p.writes[key]; ok {
			continue
		}
		fn(key, p.table.clone(row))
	}
	for key, w := range p.writes {
		if w != nil {
			fn(key, p.table.clone(*w))
		}
	}
}

func (p *pending[K, V]) commit() {
	for key, w := range p.writes {
		if w == nil {
			delete(p.table.rows, key)
			continue
		}
		p.table.rows[key] = *w
	}
}

func cloneDecimals(d datatypes.JSONSlice[decimal.Decimal]) datatypes.JSONSlice[decimal.Decimal] {
	if d == nil {
		return nil
	}
	return slices.Clone(d)
}

func cloneStrings(s datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func identity[V any](v V) V {
	return v
}
