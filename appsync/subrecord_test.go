package appsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionRecordPutLookupDelete(t *testing.T) {
	r := NewSubscriptionRecord()

	r.Put("wire-uuid-1", 42)

	id, ok := r.Lookup("wire-uuid-1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	wireID, ok := r.LookupByQuery(42)
	assert.True(t, ok)
	assert.Equal(t, "wire-uuid-1", wireID)

	r.Delete("wire-uuid-1")

	_, ok = r.Lookup("wire-uuid-1")
	assert.False(t, ok)
	_, ok = r.LookupByQuery(42)
	assert.False(t, ok)
}

func TestSubscriptionRecordUnknownLookup(t *testing.T) {
	r := NewSubscriptionRecord()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}
