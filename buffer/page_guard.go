package buffer

// PageGuard is a scoped acquisition of one pinned frame, per the
// §9 design note: the pin/unpin pair is the resource contract, and a
// guard is how Go expresses "guaranteed release on every exit path"
// without RAII. Every FetchPage/NewPage returns one; every control-flow
// exit, including error paths, must call Unpin exactly once.
type PageGuard struct {
	bpm    *BufferPoolManager
	frame  *frame
	PageID PageID
}

// Data returns the frame's page bytes. Mutations through the returned
// slice are visible to other holders of the same frame and are
// persisted on the next FlushPage/eviction once the frame is dirty: a
// frame returned by NewPage starts dirty, and Unpin(true) marks any
// frame dirty.
func (g *PageGuard) Data() []byte {
	return g.frame.data[:PayloadSize]
}

// Unpin releases the guard's pin. dirty=true sticks: once a frame has
// been marked dirty it stays dirty until the next flush, even if a
// later Unpin on the same frame passes dirty=false.
func (g *PageGuard) Unpin(dirty bool) {
	if g == nil || g.frame == nil {
		return
	}
	g.bpm.unpin(g.frame, dirty)
	g.frame = nil
}
