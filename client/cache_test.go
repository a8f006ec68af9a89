package client

import (
	"encoding/json"
	"testing"

	"clinic-records/cachekeys"

	"github.com/stretchr/testify/assert"
)

func TestQueryCacheHitAndInvalidate(t *testing.T) {
	q := NewQueryCache()
	listKey := cachekeys.Key(cachekeys.RecordAll, map[string]int{"pageNumber": 1})
	one := cachekeys.RecordSpecificKey("1")
	ten := cachekeys.RecordSpecificKey("10")

	for _, key := range []string{listKey, one, ten} {
		assert.True(t, q.Store(key, q.Begin(key), json.RawMessage(`1`)))
	}

	q.Invalidate(one)
	assert.True(t, q.Stale(one))
	assert.False(t, q.Stale(ten))
	_, ok := q.Get(one)
	assert.False(t, ok)

	q.Invalidate(cachekeys.RecordAll)
	assert.True(t, q.Stale(listKey))

	v, ok := q.Get(ten)
	assert.True(t, ok)
	assert.JSONEq(t, `1`, string(v))
}

func TestQueryCacheDiscardsFetchStartedBeforeInvalidation(t *testing.T) {
	q := NewQueryCache()
	key := cachekeys.RecordSpecificKey("1")

	ticket := q.Begin(key)
	q.Invalidate(key)

	assert.False(t, q.Store(key, ticket, json.RawMessage(`"old"`)))
	_, ok := q.Get(key)
	assert.False(t, ok)

	assert.True(t, q.Store(key, q.Begin(key), json.RawMessage(`"new"`)))
	v, ok := q.Get(key)
	assert.True(t, ok)
	assert.JSONEq(t, `"new"`, string(v))
}

func TestQueryCacheDiscardsSlowerOlderFetch(t *testing.T) {
	q := NewQueryCache()
	key := cachekeys.RecordSpecificKey("1")

	first := q.Begin(key)
	second := q.Begin(key)

	assert.True(t, q.Store(key, second, json.RawMessage(`2`)))
	assert.False(t, q.Store(key, first, json.RawMessage(`1`)))

	v, _ := q.Get(key)
	assert.JSONEq(t, `2`, string(v))
}
