package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTableRoundTrip(t *testing.T) {
	h := NewHandleTable[string]()

	id1 := h.New("a")
	id2 := h.New("b")
	assert.NotEqual(t, id1, id2)

	v, ok := h.Get(id1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = h.Get(id2)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestHandleTableResetInvalidatesOldHandles(t *testing.T) {
	h := NewHandleTable[int]()

	id := h.New(42)
	h.Reset()

	_, ok := h.Get(id)
	assert.False(t, ok, "handle from before Reset must not resolve afterward")

	newID := h.New(7)
	v, ok := h.Get(newID)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestReverseHandleTableIDForIsStablePerKey(t *testing.T) {
	h := NewReverseHandleTable[string, struct{}]()

	id1, existed := h.IDFor("bp-1", struct{}{})
	assert.False(t, existed)

	id2, existed := h.IDFor("bp-1", struct{}{})
	assert.True(t, existed)
	assert.Equal(t, id1, id2, "IDFor must return the same id for an already-registered key")

	id3, _ := h.IDFor("bp-2", struct{}{})
	assert.NotEqual(t, id1, id3)
}

func TestReverseHandleTableLookupAndDelete(t *testing.T) {
	h := NewReverseHandleTable[string, int]()

	id, _ := h.IDFor("k", 9)

	got, ok := h.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, id, got)

	v, ok := h.Get(id)
	require.True(t, ok)
	assert.Equal(t, 9, v)

	h.Delete("k")

	_, ok = h.Lookup("k")
	assert.False(t, ok)
	_, ok = h.Get(id)
	assert.False(t, ok)
}
