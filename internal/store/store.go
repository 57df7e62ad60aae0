// Package store holds the engine state as typed in-memory tables with an
// all-or-nothing transaction overlay. Writes made through a Tx are invisible
// to committed reads until Commit, and vanish on Discard.
//
// Tables are not safe for concurrent use on their own; callers serialize
// access (the engine holds its execution lock around every Tx).
package store

import "errors"

var ErrTxDone = errors.New("store: transaction already finished")

type staged interface {
	apply()
}

type Tx struct {
	overlays map[any]staged
	order    []staged
	done     bool
}

func Begin() *Tx {
	return &Tx{overlays: make(map[any]staged)}
}

// Commit applies every staged write in the order tables were first touched.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	for _, s := range tx.order {
		s.apply()
	}
	tx.done = true
	return nil
}

func (tx *Tx) Discard() {
	tx.overlays = nil
	tx.order = nil
	tx.done = true
}

func (tx *Tx) Done() bool {
	return tx.done
}

type entry[V any] struct {
	value   V
	deleted bool
}

type overlay[K comparable, V any] struct {
	table  *Table[K, V]
	writes map[K]entry[V]
}

func (o *overlay[K, V]) apply() {
	for k, e := range o.writes {
		if e.deleted {
			delete(o.table.rows, k)
			continue
		}
		o.table.rows[k] = e.value
	}
}

// Table is a keyed collection of immutable values. Store a new value with
// Put instead of mutating one returned by Get.
type Table[K comparable, V any] struct {
	name string
	rows map[K]V
}

func NewTable[K comparable, V any](name string) *Table[K, V] {
	return &Table[K, V]{name: name, rows: make(map[K]V)}
}

func (t *Table[K, V]) Name() string {
	return t.name
}

func (t *Table[K, V]) overlay(tx *Tx, create bool) *overlay[K, V] {
	if tx == nil || tx.done {
		return nil
	}
	if s, ok := tx.overlays[t]; ok {
		return s.(*overlay[K, V])
	}
	if !create {
		return nil
	}
	o := &overlay[K, V]{table: t, writes: make(map[K]entry[V])}
	tx.overlays[t] = o
	tx.order = append(tx.order, o)
	return o
}

// Get reads through the overlay of tx. A nil tx reads committed state.
func (t *Table[K, V]) Get(tx *Tx, k K) (V, bool) {
	if o := t.overlay(tx, false); o != nil {
		if e, ok := o.writes[k]; ok {
			if e.deleted {
				var zero V
				return zero, false
			}
			return e.value, true
		}
	}
	v, ok := t.rows[k]
	return v, ok
}

// Put stages v under k. It panics when tx is nil or finished.
func (t *Table[K, V]) Put(tx *Tx, k K, v V) {
	o := t.overlay(tx, true)
	if o == nil {
		panic("store: write to " + t.name + " outside a transaction")
	}
	o.writes[k] = entry[V]{value: v}
}

func (t *Table[K, V]) Delete(tx *Tx, k K) {
	o := t.overlay(tx, true)
	if o == nil {
		panic("store: delete from " + t.name + " outside a transaction")
	}
	o.writes[k] = entry[V]{deleted: true}
}

// Len counts committed rows.
func (t *Table[K, V]) Len() int {
	return len(t.rows)
}

// Range walks committed rows until fn returns false. Order is unspecified.
func (t *Table[K, V]) Range(fn func(K, V) bool) {
	for k, v := range t.rows {
		if !fn(k, v) {
			return
		}
	}
}

// Counter is a monotonic allocator whose increments only survive Commit.
type Counter struct {
	t *Table[struct{}, uint64]
}

func NewCounter(name string) *Counter {
	return &Counter{t: NewTable[struct{}, uint64](name)}
}

// Next allocates the next value, starting at 1.
func (c *Counter) Next(tx *Tx) uint64 {
	v, _ := c.t.Get(tx, struct{}{})
	v++
	c.t.Put(tx, struct{}{}, v)
	return v
}

// Current is the last committed allocation, or zero.
func (c *Counter) Current(tx *Tx) uint64 {
	v, _ := c.t.Get(tx, struct{}{})
	return v
}
