package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/errs"
)

const invalidFrameID = -1

// lruNode is a doubly-linked-list node keyed by frame id, oldest
// (least-recently-unpinned) toward head, most recent toward tail.
type lruNode struct {
	prev, next *lruNode
	frameID    int
}

// lruReplacer is a plain least-recently-unpinned replacer. It is the
// teacher's lru_k_node/lru_k_replacer shape with the per-frame access
// history dropped: spec §4.2 asks for LRU, not LRU-K.
type lruReplacer struct {
	mu sync.Mutex

	maxSize int
	nodes   map[int]*lruNode
	head    *lruNode // sentinel; head.next is the oldest
	tail    *lruNode // sentinel; tail.prev is the newest
}

// NewLRUReplacer constructs an LRU replacer for a pool of maxSize frames.
func NewLRUReplacer(maxSize int) *lruReplacer {
	head := &lruNode{frameID: invalidFrameID}
	tail := &lruNode{frameID: invalidFrameID}
	head.next = tail
	tail.prev = head

	return &lruReplacer{
		maxSize: maxSize,
		nodes:   make(map[int]*lruNode),
		head:    head,
		tail:    tail,
	}
}

func (r *lruReplacer) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (r *lruReplacer) appendTail(n *lruNode) {
	n.prev = r.tail.prev
	n.next = r.tail
	r.tail.prev.next = n
	r.tail.prev = n
}

func (r *lruReplacer) Victim() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldest := r.head.next
	if oldest == r.tail {
		return invalidFrameID, false
	}

	r.unlink(oldest)
	delete(r.nodes, oldest.frameID)
	return oldest.frameID, true
}

func (r *lruReplacer) Pin(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return
	}
	r.unlink(n)
	delete(r.nodes, frameID)
}

// Unpin marks frameID evictable, appending it as the most recent. It
// is idempotent on an already-evictable frame. §9's redesign flag
// resolves the source's LRU-rejects/Clock-tolerates asymmetry: both
// policies now reject an overflowing Unpin as a caller bug.
func (r *lruReplacer) Unpin(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[frameID]; ok {
		return
	}
	if len(r.nodes) >= r.maxSize {
		log.WithField("frame_id", frameID).
			WithError(errors.Wrap(errs.ErrReplacerOverflow, "lru unpin")).
			Warn("dropping unpin that would overflow replacer capacity")
		return
	}

	n := &lruNode{frameID: frameID}
	r.appendTail(n)
	r.nodes[frameID] = n
}

func (r *lruReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
