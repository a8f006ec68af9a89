package client

import (
	"encoding/json"
	"sync"

	"clinic-records/cachekeys"
)

type slot struct {
	value  json.RawMessage
	filled bool
	stale  bool
	// stored is the ticket of the fetch whose value is held, invalidated
	// the ticket counter value at the last invalidation.
	stored      uint64
	invalidated uint64
}

// QueryCache holds query results by cache key. Every fetch takes a ticket
// from Begin; Store only accepts a value whose ticket is newer than both
// the held value and the key's last invalidation, so a slow response can
// never overwrite a fresher one.
type QueryCache struct {
	mu    sync.Mutex
	seq   uint64
	slots map[string]*slot
}

func NewQueryCache() *QueryCache {
	return &QueryCache{slots: make(map[string]*slot)}
}

// Get returns the cached value for key when it is present and fresh.
func (q *QueryCache) Get(key string) (json.RawMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[key]
	if !ok || !s.filled || s.stale {
		return nil, false
	}
	return s.value, true
}

// Begin starts a fetch of key and returns its ticket.
func (q *QueryCache) Begin(key string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if _, ok := q.slots[key]; !ok {
		q.slots[key] = &slot{}
	}
	return q.seq
}

// Store records the result of the fetch holding ticket. It reports false
// when the result was discarded as out of date.
func (q *QueryCache) Store(key string, ticket uint64, value json.RawMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[key]
	if !ok {
		s = &slot{}
		q.slots[key] = s
	}
	if ticket <= s.invalidated || ticket <= s.stored {
		return false
	}
	s.value = value
	s.filled = true
	s.stale = false
	s.stored = ticket
	return true
}

// Invalidate marks every key under prefix stale, including keys with a
// fetch still in flight.
func (q *QueryCache) Invalidate(prefix string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	for key, s := range q.slots {
		if cachekeys.Matches(key, prefix) {
			s.stale = true
			s.invalidated = q.seq
		}
	}
}

// Stale reports whether key holds a value that must be refetched.
func (q *QueryCache) Stale(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[key]
	return ok && s.filled && s.stale
}
