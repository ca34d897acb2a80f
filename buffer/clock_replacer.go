package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/errs"
)

type clockState int

const (
	emptyOrPinned clockState = iota
	untouched
	accessed
)

// clockReplacer is a circular-array CLOCK (second-chance) replacer,
// ported directly from the original's clock_replacer.cpp sweep.
type clockReplacer struct {
	mu       sync.Mutex
	circular []clockState
	hand     int
	capacity int
}

// NewClockReplacer constructs a Clock replacer for a pool of capacity frames.
func NewClockReplacer(capacity int) *clockReplacer {
	return &clockReplacer{
		circular: make([]clockState, capacity),
		capacity: capacity,
	}
}

// Victim sweeps from hand: an ACCESSED slot downgrades to UNTOUCHED and
// the sweep advances; the first UNTOUCHED slot found is evicted. The
// sweep is guaranteed to terminate because Size() > 0 implies at least
// one non-empty slot exists.
func (c *clockReplacer) Victim() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size() == 0 {
		return invalidFrameID, false
	}

	for {
		switch c.circular[c.hand] {
		case accessed:
			c.circular[c.hand] = untouched
			c.hand = (c.hand + 1) % c.capacity
		case untouched:
			victim := c.hand
			c.circular[c.hand] = emptyOrPinned
			c.hand = (c.hand + 1) % c.capacity
			return victim, true
		default: // emptyOrPinned
			c.hand = (c.hand + 1) % c.capacity
		}
	}
}

func (c *clockReplacer) Pin(frameID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frameID < 0 || frameID >= c.capacity {
		return
	}
	c.circular[frameID] = emptyOrPinned
}

// Unpin sets ACCESSED only on the first unpin after eviction
// (state was EMPTY_OR_PINNED); it never downgrades an already-ACCESSED
// slot, preserving recency. Per §9's redesign flag, an Unpin on a
// frame id outside [0, capacity) is rejected rather than silently
// tolerated, matching the LRU replacer's overflow policy.
func (c *clockReplacer) Unpin(frameID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frameID < 0 || frameID >= c.capacity {
		log.WithField("frame_id", frameID).
			WithError(errors.Wrap(errs.ErrReplacerOverflow, "clock unpin")).
			Warn("dropping unpin outside replacer capacity")
		return
	}
	if c.circular[frameID] == emptyOrPinned {
		c.circular[frameID] = accessed
	}
}

func (c *clockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size()
}

func (c *clockReplacer) size() int {
	n := 0
	for _, s := range c.circular {
		if s != emptyOrPinned {
			n++
		}
	}
	return n
}
