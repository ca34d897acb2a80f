package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUReplacer(t *testing.T) {
	t.Run("victim returns the oldest unpinned frame", func(t *testing.T) {
		r := NewLRUReplacer(3)
		r.Unpin(1)
		r.Unpin(2)
		r.Unpin(3)

		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 1, id)

		id, ok = r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 2, id)
	})

	t.Run("pin removes a frame from eviction eligibility", func(t *testing.T) {
		r := NewLRUReplacer(3)
		r.Unpin(1)
		r.Unpin(2)
		r.Pin(1)

		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 2, id)
	})

	t.Run("unpin is idempotent and does not reorder an already-evictable frame", func(t *testing.T) {
		r := NewLRUReplacer(3)
		r.Unpin(1)
		r.Unpin(2)
		r.Unpin(1) // already evictable; must not move to tail

		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 1, id)
	})

	t.Run("victim on empty replacer returns false", func(t *testing.T) {
		r := NewLRUReplacer(3)
		_, ok := r.Victim()
		assert.False(t, ok)
	})

	t.Run("unpin beyond capacity is dropped, not appended", func(t *testing.T) {
		r := NewLRUReplacer(2)
		r.Unpin(1)
		r.Unpin(2)
		r.Unpin(3) // would overflow capacity 2

		assert.Equal(t, 2, r.Size())
		id, _ := r.Victim()
		assert.Equal(t, 1, id)
	})

	t.Run("size tracks eligible frames", func(t *testing.T) {
		r := NewLRUReplacer(3)
		assert.Equal(t, 0, r.Size())
		r.Unpin(1)
		r.Unpin(2)
		assert.Equal(t, 2, r.Size())
		r.Pin(1)
		assert.Equal(t, 1, r.Size())
	})
}

func TestClockReplacer(t *testing.T) {
	t.Run("a just-accessed frame survives one full sweep", func(t *testing.T) {
		// spec §8 scenario 6: pool of size 3, touch A, B, C, unpin all.
		r := NewClockReplacer(3)
		r.Unpin(0)
		r.Unpin(1)
		r.Unpin(2)

		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 0, id)

		id, ok = r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 1, id)
	})

	t.Run("pin removes a frame from eviction eligibility", func(t *testing.T) {
		r := NewClockReplacer(3)
		r.Unpin(0)
		r.Unpin(1)
		r.Pin(0)

		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 1, id)
	})

	t.Run("unpin does not downgrade an already-accessed frame", func(t *testing.T) {
		r := NewClockReplacer(2)
		r.Unpin(0) // EMPTY_OR_PINNED -> ACCESSED
		r.Unpin(0) // already ACCESSED; must stay ACCESSED
		r.Unpin(1)

		// both slots are ACCESSED: the sweep turns 0 and 1 UNTOUCHED,
		// wraps, and evicts 0.
		id, ok := r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 0, id)

		// 1 is still UNTOUCHED; it is evicted on the next sweep.
		id, ok = r.Victim()
		assert.True(t, ok)
		assert.Equal(t, 1, id)
	})

	t.Run("victim on empty replacer returns false", func(t *testing.T) {
		r := NewClockReplacer(3)
		_, ok := r.Victim()
		assert.False(t, ok)
	})

	t.Run("size counts non-empty slots", func(t *testing.T) {
		r := NewClockReplacer(3)
		assert.Equal(t, 0, r.Size())
		r.Unpin(0)
		r.Unpin(1)
		assert.Equal(t, 2, r.Size())
	})

	t.Run("unpin outside capacity is dropped, not recorded", func(t *testing.T) {
		r := NewClockReplacer(2)
		r.Unpin(5)
		assert.Equal(t, 0, r.Size())
	})
}
