package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/errs"
	"github.com/corvusdb/corvus/storage/disk"
)

// BufferPoolManager pins/unpins frames and maps PageID -> frame for
// every upper layer in the core. It is the only component that talks
// to both the disk manager and a Replacer, per spec §4.3/§4.4.
type BufferPoolManager struct {
	mu sync.Mutex

	frames     []*frame
	freeFrames []int
	pageTable  map[PageID]int

	replacer Replacer
	disk     *disk.Manager
}

// NewBufferPoolManager constructs a pool of size frames backed by dm,
// evicting through replacer when all frames are in use.
func NewBufferPoolManager(size int, replacer Replacer, dm *disk.Manager) *BufferPoolManager {
	frames := make([]*frame, size)
	free := make([]int, size)
	for i := 0; i < size; i++ {
		frames[i] = newFrame(i)
		free[i] = i
	}

	return &BufferPoolManager{
		frames:     frames,
		freeFrames: free,
		pageTable:  make(map[PageID]int),
		replacer:   replacer,
		disk:       dm,
	}
}

// FetchPage returns a pinned guard over id's bytes, reading from disk
// on a pool miss. It fails with ErrNoFreeFrame iff every frame is
// pinned and the replacer has no victim.
func (b *BufferPoolManager) FetchPage(id PageID) (*PageGuard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[id]; ok {
		f := b.frames[fid]
		b.pinLocked(f)
		return &PageGuard{bpm: b, frame: f, PageID: id}, nil
	}

	f, err := b.acquireFrameLocked()
	if err != nil {
		return nil, err
	}

	if err := b.disk.ReadPage(id.Fd, id.PageNo, f.data); err != nil {
		b.freeFrames = append(b.freeFrames, f.id)
		return nil, errors.Wrapf(err, "fetch page %+v", id)
	}
	if !verifyChecksum(f.data) {
		b.freeFrames = append(b.freeFrames, f.id)
		return nil, errors.Wrapf(errs.ErrPageCorrupt, "fetch page %+v", id)
	}

	f.pageID = id
	b.pageTable[id] = f.id
	b.pinLocked(f)

	log.WithField("page_id", id).WithField("frame_id", f.id).Debug("fetched page from disk")
	return &PageGuard{bpm: b, frame: f, PageID: id}, nil
}

// NewPage allocates a fresh page id on fd via the disk manager and
// returns a pinned, zero-filled guard over it. The frame starts dirty,
// so the page reaches disk on its first flush or eviction even if no
// holder marks it dirty.
func (b *BufferPoolManager) NewPage(fd int) (*PageGuard, error) {
	pageNo, err := b.disk.AllocatePage(fd)
	if err != nil {
		return nil, errors.Wrap(err, "new page")
	}
	id := PageID{Fd: fd, PageNo: pageNo}

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := b.acquireFrameLocked()
	if err != nil {
		return nil, err
	}

	f.reset()
	f.isDirty = true
	f.pageID = id
	b.pageTable[id] = f.id
	b.pinLocked(f)

	log.WithField("page_id", id).WithField("frame_id", f.id).Debug("allocated new page")
	return &PageGuard{bpm: b, frame: f, PageID: id}, nil
}

// acquireFrameLocked returns a frame ready to be repurposed for a new
// page, flushing it first if it was dirty. Caller holds b.mu.
func (b *BufferPoolManager) acquireFrameLocked() (*frame, error) {
	if n := len(b.freeFrames); n > 0 {
		id := b.freeFrames[n-1]
		b.freeFrames = b.freeFrames[:n-1]
		return b.frames[id], nil
	}

	victimID, ok := b.replacer.Victim()
	if !ok {
		return nil, errors.Wrap(errs.ErrNoFreeFrame, "acquire frame")
	}

	f := b.frames[victimID]
	if err := b.flushLocked(f); err != nil {
		return nil, err
	}
	delete(b.pageTable, f.pageID)
	return f, nil
}

func (b *BufferPoolManager) pinLocked(f *frame) {
	f.pinCount++
	b.replacer.Pin(f.id)
}

// unpin is called by PageGuard.Unpin. dirty=true sticks even if a
// later call on the same frame passes false, per spec §4.3.
func (b *BufferPoolManager) unpin(f *frame, dirty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dirty {
		f.isDirty = true
	}
	if f.pinCount == 0 {
		return
	}
	f.pinCount--
	if f.pinCount == 0 {
		b.replacer.Unpin(f.id)
	}
}

// FlushPage writes id's bytes back to disk if dirty.
func (b *BufferPoolManager) FlushPage(id PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return nil
	}
	return b.flushLocked(b.frames[fid])
}

// FlushAll flushes every resident dirty page.
func (b *BufferPoolManager) FlushAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, fid := range b.pageTable {
		if err := b.flushLocked(b.frames[fid]); err != nil {
			return errors.Wrapf(err, "flush all: page %+v", id)
		}
	}
	return nil
}

func (b *BufferPoolManager) flushLocked(f *frame) error {
	if !f.isDirty {
		return nil
	}
	stampChecksum(f.data)
	if err := b.disk.WritePage(f.pageID.Fd, f.pageID.PageNo, f.data); err != nil {
		return errors.Wrapf(err, "flush frame %d", f.id)
	}
	f.isDirty = false
	return nil
}

// DeletePage removes id from the pool and deallocates it on disk. It
// is a caller error to delete a still-pinned page.
func (b *BufferPoolManager) DeletePage(id PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		b.disk.DeallocatePage(id.Fd, id.PageNo)
		return nil
	}

	f := b.frames[fid]
	if f.pinCount > 0 {
		return errors.Errorf("delete page %+v: still pinned (count=%d)", id, f.pinCount)
	}

	b.replacer.Pin(fid) // remove from eviction eligibility before recycling
	delete(b.pageTable, id)
	f.reset()
	b.freeFrames = append(b.freeFrames, fid)
	b.disk.DeallocatePage(id.Fd, id.PageNo)
	return nil
}
