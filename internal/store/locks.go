package store

import (
	"sort"
	"sync"
)

// lockTable hands out one mutex per lineage so writers to the same lineage
// serialize while writers to different lineages proceed independently.
// Mutexes are never evicted; a lineage is never deleted either.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// acquire locks every key in sorted order, deduplicated, and returns the
// release function. The fixed global order prevents deadlock between
// multi-lineage commits touching overlapping lineage sets.
func (t *lockTable) acquire(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	held := make([]*sync.Mutex, 0, len(sorted))
	var prev string
	for i, key := range sorted {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		l := t.get(key)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
