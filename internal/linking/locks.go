package linking

import (
	"sync"

	"github.com/google/uuid"
)

// entityLocks serializes merge execution per entity. Locks are acquired in
// id order so two concurrent merges over overlapping pairs cannot deadlock.
type entityLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *entityLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// lockPair locks both entity ids in deterministic order and returns the
// unlock function.
func (l *entityLocks) lockPair(a, b uuid.UUID) func() {
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}
	mFirst := l.get(first)
	mSecond := l.get(second)
	mFirst.Lock()
	mSecond.Lock()
	return func() {
		mSecond.Unlock()
		mFirst.Unlock()
	}
}

func (l *entityLocks) lockOne(id uuid.UUID) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}
