// Package objref keeps process-wide references to objects that generated
// view builders cannot express as literals (bindings, data context stacks,
// property descriptors created at runtime).
//
// Generated code reads entries through Default.Ref(i). The compiler writes
// them through an injected *Table, which is Default unless a caller owns a
// separate table.
package objref

import (
	"fmt"
	"sync"
	"sync/atomic"

	"fortio.org/safecast"
)

const (
	segmentBits = 8
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

type slot struct{ v any }

type segment [segmentSize]atomic.Pointer[slot]

// Table is an append-only arena of object references addressed by index.
// Index 0 is never handed out.
//
// Segments never move once allocated; growing the table copies only the
// segment directory and publishes it atomically, so a concurrent Add never
// loses its write and readers never lock.
type Table struct {
	next atomic.Uint32
	dir  atomic.Pointer[[]*segment]
	grow sync.Mutex
}

// Default is the table generated code refers to.
var Default = New()

// New returns an empty table.
func New() *Table {
	t := &Table{}
	dir := make([]*segment, 1)
	dir[0] = new(segment)
	t.dir.Store(&dir)
	return t
}

// Add stores obj and returns its index (>= 1).
func (t *Table) Add(obj any) int {
	n := t.next.Add(1)
	if n == 0 {
		panic(fmt.Errorf("objref: index overflow"))
	}
	idx, err := safecast.Conv[int](n)
	if err != nil {
		panic(fmt.Errorf("objref: index overflow: %w", err))
	}
	seg := t.segmentFor(idx)
	seg[idx&segmentMask].Store(&slot{v: obj})
	return idx
}

func (t *Table) segmentFor(idx int) *segment {
	si := idx >> segmentBits
	if dir := *t.dir.Load(); si < len(dir) && dir[si] != nil {
		return dir[si]
	}
	t.grow.Lock()
	defer t.grow.Unlock()
	dir := *t.dir.Load()
	if si < len(dir) && dir[si] != nil {
		return dir[si]
	}
	size := len(dir)
	for size <= si {
		size *= 2
	}
	grown := make([]*segment, size)
	copy(grown, dir)
	for i := len(dir); i <= si; i++ {
		grown[i] = new(segment)
	}
	t.dir.Store(&grown)
	return grown[si]
}

// Get returns the object stored at idx. ok is false for indices that were
// never returned by Add or whose store has not completed yet.
func (t *Table) Get(idx int) (any, bool) {
	if idx <= 0 {
		return nil, false
	}
	si := idx >> segmentBits
	dir := *t.dir.Load()
	if si >= len(dir) || dir[si] == nil {
		return nil, false
	}
	s := dir[si][idx&segmentMask].Load()
	if s == nil {
		return nil, false
	}
	return s.v, true
}

// Ref is Get for generated code: it returns nil for unknown indices.
func (t *Table) Ref(idx int) any {
	v, _ := t.Get(idx)
	return v
}

// Len reports how many indices have been handed out.
func (t *Table) Len() int {
	n, err := safecast.Conv[int](t.next.Load())
	if err != nil {
		panic(fmt.Errorf("objref: length overflow: %w", err))
	}
	return n
}
