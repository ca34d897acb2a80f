package index

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/buffer"
	"github.com/corvusdb/corvus/codec"
	"github.com/corvusdb/corvus/errs"
	"github.com/corvusdb/corvus/record"
	"github.com/corvusdb/corvus/storage/disk"
)

const fileHeaderSize = 128

// FileHeader is index page 0, read directly through the disk manager
// and never routed through the buffer pool, per spec §6.
type FileHeader struct {
	ColLen        int
	Order         int
	NumPages      int64
	RootPage      int64
	FirstLeaf     int64
	LastLeaf      int64
	FirstFreePage int64
}

// Iid names a position within the leaf list: the leaf page and a slot
// offset into it.
type Iid struct {
	PageNo int64
	SlotNo int
}

// Tree is one open B+tree index file. All public operations serialize
// on root_latch, a single coarse per-index mutex — crab latching is a
// permitted but unimplemented optimization, per spec §5.
type Tree struct {
	rootLatch sync.Mutex

	hdr  FileHeader
	fd   int
	bpm  *buffer.BufferPoolManager
	disk *disk.Manager
}

// CreateFile initializes a new, empty index file keyed on colLen-byte
// fixed-width keys, with btree_order capped at order keys/children per
// node. order <= 0 means "use the full per-page capacity" (the widest
// order a page of this col_len can hold); a positive order narrower
// than that capacity is stored as-is, per spec §3's independently
// configurable btree_order field.
func CreateFile(dm *disk.Manager, path string, colLen, order int) error {
	capacity := maxKeysFor(colLen)
	if order <= 0 {
		order = capacity
	}
	if order > capacity {
		return errors.Errorf("create index file: order %d exceeds page capacity %d for col_len %d", order, capacity, colLen)
	}

	if err := dm.CreateFile(path); err != nil {
		return err
	}

	hdr := FileHeader{
		ColLen:        colLen,
		Order:         order,
		NumPages:      1,
		RootPage:      disk.InvalidPageID,
		FirstLeaf:     disk.InvalidPageID,
		LastLeaf:      disk.InvalidPageID,
		FirstFreePage: disk.InvalidPageID,
	}

	fd, err := dm.OpenFile(path)
	if err != nil {
		return err
	}
	defer dm.CloseFile(fd)

	buf, err := codec.Encode(hdr, fileHeaderSize)
	if err != nil {
		return errors.Wrap(err, "create index file: encode header")
	}
	page := make([]byte, disk.PageSize)
	copy(page, buf)
	return dm.WritePage(fd, 0, page)
}

// OpenFile opens an existing index file, restoring the disk manager's
// page-id counter to num_pages so the next allocation continues right
// after the highest page written so far.
func OpenFile(dm *disk.Manager, bpm *buffer.BufferPoolManager, path string) (*Tree, error) {
	fd, err := dm.OpenFile(path)
	if err != nil {
		return nil, err
	}

	page := make([]byte, disk.PageSize)
	if err := dm.ReadPage(fd, 0, page); err != nil {
		return nil, errors.Wrap(err, "open index file: read header")
	}
	hdr, err := codec.Decode[FileHeader](page[:fileHeaderSize])
	if err != nil {
		return nil, errors.Wrap(err, "open index file: decode header")
	}

	if err := dm.SetPageCounter(fd, hdr.NumPages); err != nil {
		return nil, err
	}

	return &Tree{hdr: hdr, fd: fd, bpm: bpm, disk: dm}, nil
}

// Close persists the file header and closes the underlying fd.
func (t *Tree) Close() error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	return t.disk.CloseFile(t.fd)
}

func (t *Tree) writeHeader() error {
	buf, err := codec.Encode(t.hdr, fileHeaderSize)
	if err != nil {
		return errors.Wrap(err, "write index header")
	}
	page := make([]byte, disk.PageSize)
	copy(page, buf)
	return t.disk.WritePage(t.fd, 0, page)
}

func (t *Tree) fetchNode(pageNo int64) (*node, error) {
	g, err := t.bpm.FetchPage(buffer.PageID{Fd: t.fd, PageNo: pageNo})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch node %d", pageNo)
	}
	return decodeNode(g, t.hdr.ColLen, t.hdr.Order)
}

// newNode allocates a fresh page, preferring the index file's own free
// list before asking the buffer pool for a brand-new one.
func (t *Tree) newNode(isLeaf bool, parent int64) (*node, error) {
	if t.hdr.FirstFreePage != disk.InvalidPageID {
		pageNo := t.hdr.FirstFreePage
		n, err := t.fetchNode(pageNo)
		if err != nil {
			return nil, err
		}
		t.hdr.FirstFreePage = n.header.NextFreePageNo
		n.header = nodeHeader{
			IsLeaf:         isLeaf,
			Parent:         parent,
			NextLeaf:       disk.InvalidPageID,
			PrevLeaf:       disk.InvalidPageID,
			NextFreePageNo: disk.InvalidPageID,
		}
		if err := n.flushHeader(); err != nil {
			return nil, err
		}
		return n, nil
	}

	g, err := t.bpm.NewPage(t.fd)
	if err != nil {
		return nil, errors.Wrap(err, "allocate index page")
	}
	t.hdr.NumPages++
	log.WithField("page_no", g.PageID.PageNo).WithField("is_leaf", isLeaf).Debug("allocated new index page")
	return initNode(g, t.hdr.ColLen, t.hdr.Order, isLeaf, parent)
}

// freeNode unlinks a deallocated node by pushing it onto the index
// file's free list.
func (t *Tree) freeNode(n *node) error {
	n.header.NextFreePageNo = t.hdr.FirstFreePage
	t.hdr.FirstFreePage = n.pageID()
	return n.flushHeader()
}

func (t *Tree) unpin(n *node, dirty bool) {
	n.guard.Unpin(dirty)
}

// findLeaf descends from root to the leaf that would contain key,
// unpinning every internal page along the way but returning the leaf
// still pinned — the caller unpins it, per the §9 resolution of the
// original's unpin-then-rely-on-root_latch ambiguity.
func (t *Tree) findLeaf(key []byte) (*node, error) {
	if t.hdr.RootPage == disk.InvalidPageID {
		return nil, errors.Wrap(errs.ErrIndexEntryNotFound, "find leaf: empty tree")
	}

	n, err := t.fetchNode(t.hdr.RootPage)
	if err != nil {
		return nil, err
	}

	for !n.isLeaf() {
		idx := internalLookup(n, key)
		child := n.childAt(idx)
		t.unpin(n, false)

		n, err = t.fetchNode(child)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// internalLookup returns the largest i such that keys[i] <= key, or 0
// if key < keys[0].
func internalLookup(n *node, key []byte) int {
	idx := 0
	for i := 1; i < n.size(); i++ {
		if bytes.Compare(n.keyAt(i), key) <= 0 {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// GetValue returns the RID associated with key, if present.
func (t *Tree) GetValue(key []byte) (record.Rid, bool, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()

	leaf, err := t.findLeaf(key)
	if err != nil {
		if errors.Is(err, errs.ErrIndexEntryNotFound) {
			return record.Rid{}, false, nil
		}
		return record.Rid{}, false, err
	}
	defer t.unpin(leaf, false)

	idx := leaf.insertIdx(key)
	if idx >= leaf.size() || !bytes.Equal(leaf.keyAt(idx), key) {
		return record.Rid{}, false, nil
	}
	return leaf.ridAt(idx), true, nil
}

// LowerBound returns the Iid of the first entry whose key is >= key.
func (t *Tree) LowerBound(key []byte) (Iid, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()
	return t.boundLocked(key, false)
}

// UpperBound returns the Iid of the first entry whose key is > key.
func (t *Tree) UpperBound(key []byte) (Iid, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()
	return t.boundLocked(key, true)
}

func (t *Tree) boundLocked(key []byte, strict bool) (Iid, error) {
	if t.hdr.RootPage == disk.InvalidPageID {
		return t.leafEndLocked()
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return Iid{}, err
	}
	defer t.unpin(leaf, false)

	slot := leaf.size()
	for i := 0; i < leaf.size(); i++ {
		cmp := bytes.Compare(leaf.keyAt(i), key)
		if (strict && cmp > 0) || (!strict && cmp >= 0) {
			slot = i
			break
		}
	}

	if slot == leaf.size() {
		if leaf.pageID() == t.hdr.LastLeaf {
			return t.leafEndLocked()
		}
		return Iid{PageNo: leaf.header.NextLeaf, SlotNo: 0}, nil
	}
	return Iid{PageNo: leaf.pageID(), SlotNo: slot}, nil
}

func (t *Tree) leafEndLocked() (Iid, error) {
	if t.hdr.LastLeaf == disk.InvalidPageID {
		return Iid{PageNo: disk.InvalidPageID, SlotNo: 0}, nil
	}
	n, err := t.fetchNode(t.hdr.LastLeaf)
	if err != nil {
		return Iid{}, err
	}
	defer t.unpin(n, false)
	return Iid{PageNo: t.hdr.LastLeaf, SlotNo: n.size()}, nil
}

// advance returns the Iid immediately after iid in leaf-list order,
// crossing into the next leaf's slot 0 at a leaf boundary and becoming
// leaf_end() once the last leaf is exhausted.
func (t *Tree) advance(iid Iid) (Iid, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()

	n, err := t.fetchNode(iid.PageNo)
	if err != nil {
		return Iid{}, err
	}
	defer t.unpin(n, false)

	if iid.SlotNo+1 < n.size() {
		return Iid{PageNo: iid.PageNo, SlotNo: iid.SlotNo + 1}, nil
	}
	if n.header.NextLeaf == disk.InvalidPageID {
		return t.leafEndLocked()
	}
	return Iid{PageNo: n.header.NextLeaf, SlotNo: 0}, nil
}

// GetRid resolves an Iid to the RID stored there.
func (t *Tree) GetRid(iid Iid) (record.Rid, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()

	n, err := t.fetchNode(iid.PageNo)
	if err != nil {
		return record.Rid{}, err
	}
	defer t.unpin(n, false)

	if iid.SlotNo >= n.size() {
		return record.Rid{}, errors.Wrap(errs.ErrIndexEntryNotFound, "get rid")
	}
	return n.ridAt(iid.SlotNo), nil
}

// InsertEntry inserts (key, rid), rejecting duplicates. Returns false
// iff key already exists.
func (t *Tree) InsertEntry(key []byte, rid record.Rid) (bool, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()

	if t.hdr.RootPage == disk.InvalidPageID {
		n, err := t.newNode(true, disk.InvalidPageID)
		if err != nil {
			return false, err
		}
		t.hdr.RootPage = n.pageID()
		t.hdr.FirstLeaf = n.pageID()
		t.hdr.LastLeaf = n.pageID()
		leafInsert(n, key, rid)
		if err := n.flushHeader(); err != nil {
			t.unpin(n, true)
			return false, err
		}
		t.unpin(n, true)
		return true, nil
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	if !leafInsert(leaf, key, rid) {
		t.unpin(leaf, false)
		return false, nil
	}

	if leaf.size() == leaf.maxSize() {
		if err := t.splitLeaf(leaf); err != nil {
			t.unpin(leaf, true)
			return false, err
		}
		return true, nil
	}

	if err := leaf.flushHeader(); err != nil {
		t.unpin(leaf, true)
		return false, err
	}
	t.unpin(leaf, true)
	return true, nil
}

// leafInsert inserts key/rid in sorted position, rejecting duplicates.
func leafInsert(n *node, key []byte, rid record.Rid) bool {
	idx := n.insertIdx(key)
	if idx < n.size() && bytes.Equal(n.keyAt(idx), key) {
		return false
	}

	n.shiftRight(idx)
	n.setKeyAt(idx, key)
	n.setRidAt(idx, rid)
	n.header.NumKeys++
	return true
}

// splitLeaf splits an over-capacity leaf and threads the new sibling
// into the leaf list, per spec §4.5.2.
func (t *Tree) splitLeaf(n *node) error {
	sibling, err := t.newNode(true, n.header.Parent)
	if err != nil {
		t.unpin(n, true)
		return err
	}

	maxSize := n.maxSize()
	pos := (maxSize + 1) / 2
	moved := maxSize - pos

	for i := 0; i < moved; i++ {
		sibling.setKeyAt(i, n.keyAt(pos+i))
		copy(sibling.valueAt(i), n.valueAt(pos+i))
	}
	sibling.header.NumKeys = moved
	n.header.NumKeys = pos

	sibling.header.NextLeaf = n.header.NextLeaf
	sibling.header.PrevLeaf = n.pageID()
	if n.header.NextLeaf != disk.InvalidPageID {
		next, err := t.fetchNode(n.header.NextLeaf)
		if err != nil {
			t.unpin(n, true)
			t.unpin(sibling, true)
			return err
		}
		next.header.PrevLeaf = sibling.pageID()
		err = next.flushHeader()
		t.unpin(next, true)
		if err != nil {
			t.unpin(n, true)
			t.unpin(sibling, true)
			return err
		}
	}
	n.header.NextLeaf = sibling.pageID()

	if n.pageID() == t.hdr.LastLeaf {
		t.hdr.LastLeaf = sibling.pageID()
	}

	splitKey := make([]byte, t.hdr.ColLen)
	copy(splitKey, sibling.keyAt(0))

	if err := n.flushHeader(); err != nil {
		t.unpin(n, true)
		t.unpin(sibling, true)
		return err
	}
	if err := sibling.flushHeader(); err != nil {
		t.unpin(n, true)
		t.unpin(sibling, true)
		return err
	}

	log.WithField("page_no", n.pageID()).WithField("sibling_no", sibling.pageID()).Debug("split leaf")
	return t.insertIntoParent(n, splitKey, sibling)
}

// insertIntoParent implements spec §4.5.2's insert_into_parent: either
// allocate a new root over old/new, or insert the separator into the
// existing parent, splitting it too if it overflows.
func (t *Tree) insertIntoParent(left *node, splitKey []byte, right *node) error {
	if left.pageID() == t.hdr.RootPage {
		newRoot, err := t.newNode(false, disk.InvalidPageID)
		if err != nil {
			t.unpin(left, true)
			t.unpin(right, true)
			return err
		}

		firstKey := make([]byte, t.hdr.ColLen)
		copy(firstKey, left.keyAt(0))
		newRoot.setKeyAt(0, firstKey)
		newRoot.setChildAt(0, left.pageID())
		newRoot.setKeyAt(1, splitKey)
		newRoot.setChildAt(1, right.pageID())
		newRoot.header.NumKeys = 2
		if err := newRoot.flushHeader(); err != nil {
			return err
		}

		left.header.Parent = newRoot.pageID()
		right.header.Parent = newRoot.pageID()
		if err := left.flushHeader(); err != nil {
			return err
		}
		if err := right.flushHeader(); err != nil {
			return err
		}

		t.hdr.RootPage = newRoot.pageID()

		t.unpin(newRoot, true)
		t.unpin(left, true)
		t.unpin(right, true)
		return nil
	}

	parent, err := t.fetchNode(left.header.Parent)
	if err != nil {
		t.unpin(left, true)
		t.unpin(right, true)
		return err
	}

	right.header.Parent = parent.pageID()
	if err := right.flushHeader(); err != nil {
		t.unpin(left, true)
		t.unpin(right, true)
		t.unpin(parent, false)
		return err
	}

	idx := parent.insertIdx(splitKey)
	parent.shiftRight(idx)
	parent.setKeyAt(idx, splitKey)
	parent.setChildAt(idx, right.pageID())
	parent.header.NumKeys++

	t.unpin(left, true)
	t.unpin(right, true)

	if parent.size() < parent.maxSize() {
		err := parent.flushHeader()
		t.unpin(parent, true)
		return err
	}
	return t.splitInternal(parent)
}

func (t *Tree) splitInternal(n *node) error {
	sibling, err := t.newNode(false, n.header.Parent)
	if err != nil {
		t.unpin(n, true)
		return err
	}

	maxSize := n.maxSize()
	pos := (maxSize + 1) / 2
	moved := maxSize - pos

	for i := 0; i < moved; i++ {
		sibling.setKeyAt(i, n.keyAt(pos+i))
		copy(sibling.valueAt(i), n.valueAt(pos+i))
		child := sibling.childAt(i)
		if err := t.reparent(child, sibling.pageID()); err != nil {
			t.unpin(n, true)
			t.unpin(sibling, true)
			return err
		}
	}
	sibling.header.NumKeys = moved
	n.header.NumKeys = pos

	splitKey := make([]byte, t.hdr.ColLen)
	copy(splitKey, sibling.keyAt(0))

	if err := n.flushHeader(); err != nil {
		t.unpin(n, true)
		t.unpin(sibling, true)
		return err
	}
	if err := sibling.flushHeader(); err != nil {
		t.unpin(n, true)
		t.unpin(sibling, true)
		return err
	}

	return t.insertIntoParent(n, splitKey, sibling)
}

func (t *Tree) reparent(pageNo, parent int64) error {
	child, err := t.fetchNode(pageNo)
	if err != nil {
		return err
	}
	child.header.Parent = parent
	err = child.flushHeader()
	t.unpin(child, true)
	return err
}

// DeleteEntry removes key, returning false iff it was absent.
func (t *Tree) DeleteEntry(key []byte) (bool, error) {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()

	if t.hdr.RootPage == disk.InvalidPageID {
		return false, nil
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	idx := leaf.insertIdx(key)
	if idx >= leaf.size() || !bytes.Equal(leaf.keyAt(idx), key) {
		t.unpin(leaf, false)
		return false, nil
	}
	leaf.shiftLeft(idx)
	leaf.header.NumKeys--

	if err := t.maintainParent(leaf); err != nil {
		t.unpin(leaf, true)
		return false, err
	}

	if err := t.coalesceOrRedistribute(leaf); err != nil {
		return false, err
	}
	return true, nil
}

// maintainParent refreshes the parent's cached separator for n when n
// lost its first key and n is not already the parent's leftmost child
// (index 0 carries a duplicate separator that nothing compares against,
// so no update, and no further upward propagation, is needed there).
func (t *Tree) maintainParent(n *node) error {
	if n.header.Parent == disk.InvalidPageID || n.size() == 0 {
		return nil
	}

	parent, err := t.fetchNode(n.header.Parent)
	if err != nil {
		return err
	}

	idx := findChildIdx(parent, n.pageID())
	if idx <= 0 || bytes.Equal(parent.keyAt(idx), n.keyAt(0)) {
		t.unpin(parent, false)
		return nil
	}

	parent.setKeyAt(idx, n.keyAt(0))
	t.unpin(parent, true)
	return nil
}

func findChildIdx(parent *node, pageNo int64) int {
	for i := 0; i < parent.size(); i++ {
		if parent.childAt(i) == pageNo {
			return i
		}
	}
	return -1
}

// coalesceOrRedistribute implements spec §4.5.3 step 3.
func (t *Tree) coalesceOrRedistribute(n *node) error {
	if n.pageID() == t.hdr.RootPage {
		return t.adjustRoot(n)
	}

	if n.size() >= n.minSize() {
		if err := n.flushHeader(); err != nil {
			t.unpin(n, true)
			return err
		}
		t.unpin(n, true)
		return nil
	}

	parent, err := t.fetchNode(n.header.Parent)
	if err != nil {
		t.unpin(n, true)
		return err
	}

	index := findChildIdx(parent, n.pageID())
	neighborIdx := index + 1
	if index != 0 {
		neighborIdx = index - 1
	}
	neighbor, err := t.fetchNode(parent.childAt(neighborIdx))
	if err != nil {
		t.unpin(n, true)
		t.unpin(parent, false)
		return err
	}

	if n.size()+neighbor.size() >= 2*n.minSize() {
		return t.redistribute(n, neighbor, parent, index)
	}
	return t.coalesce(n, neighbor, parent, index)
}

// redistribute moves one key/value pair between n and neighbor so both
// sides satisfy min_size again.
func (t *Tree) redistribute(n, neighbor, parent *node, index int) error {
	if index == 0 {
		// node is left, neighbor is right: move neighbor's first pair
		// to the end of node.
		n.setKeyAt(n.size(), neighbor.keyAt(0))
		copy(n.valueAt(n.size()), neighbor.valueAt(0))
		n.header.NumKeys++
		if !n.isLeaf() {
			if err := t.reparent(n.childAt(n.size()-1), n.pageID()); err != nil {
				return err
			}
		}
		neighbor.shiftLeft(0)
		neighbor.header.NumKeys--

		childIdx := findChildIdx(parent, neighbor.pageID())
		parent.setKeyAt(childIdx, neighbor.keyAt(0))
	} else {
		// neighbor is left, node is right: move neighbor's last pair
		// to the front of node.
		last := neighbor.size() - 1
		n.shiftRight(0)
		n.setKeyAt(0, neighbor.keyAt(last))
		copy(n.valueAt(0), neighbor.valueAt(last))
		n.header.NumKeys++
		if !n.isLeaf() {
			if err := t.reparent(n.childAt(0), n.pageID()); err != nil {
				return err
			}
		}
		neighbor.header.NumKeys--

		parent.setKeyAt(index, n.keyAt(0))
	}

	var errs3 [3]error
	errs3[0] = n.flushHeader()
	errs3[1] = neighbor.flushHeader()
	errs3[2] = parent.flushHeader()

	t.unpin(n, true)
	t.unpin(neighbor, true)
	t.unpin(parent, true)

	for _, err := range errs3 {
		if err != nil {
			return err
		}
	}
	return nil
}

// coalesce merges the right one of node and neighbor into the left one
// (node itself is the left one when it is its parent's first child) and
// recurses on the parent, which lost a child.
func (t *Tree) coalesce(n, neighbor, parent *node, index int) error {
	left, right := neighbor, n
	if index == 0 {
		left, right = n, neighbor
	}

	for i := 0; i < right.size(); i++ {
		left.setKeyAt(left.size()+i, right.keyAt(i))
		copy(left.valueAt(left.size()+i), right.valueAt(i))
	}
	if !right.isLeaf() {
		for i := 0; i < right.size(); i++ {
			if err := t.reparent(right.childAt(i), left.pageID()); err != nil {
				return err
			}
		}
	}
	left.header.NumKeys += right.size()

	if right.isLeaf() {
		left.header.NextLeaf = right.header.NextLeaf
		if right.header.NextLeaf != disk.InvalidPageID {
			nxt, err := t.fetchNode(right.header.NextLeaf)
			if err != nil {
				return err
			}
			nxt.header.PrevLeaf = left.pageID()
			err = nxt.flushHeader()
			t.unpin(nxt, true)
			if err != nil {
				return err
			}
		}
		if right.pageID() == t.hdr.LastLeaf {
			t.hdr.LastLeaf = left.pageID()
		}
	}

	removedIdx := findChildIdx(parent, right.pageID())
	parent.shiftLeft(removedIdx)
	parent.header.NumKeys--

	if err := left.flushHeader(); err != nil {
		return err
	}
	if err := t.freeNode(right); err != nil {
		return err
	}

	log.WithField("left", left.pageID()).WithField("freed", right.pageID()).Debug("coalesced nodes")
	t.unpin(left, true)
	t.unpin(right, true)

	return t.coalesceOrRedistribute(parent)
}

// adjustRoot handles the two root-collapse cases of spec §4.5.3 step 3a.
func (t *Tree) adjustRoot(n *node) error {
	if n.isLeaf() {
		if n.size() == 0 {
			t.hdr.RootPage = disk.InvalidPageID
			t.hdr.FirstLeaf = disk.InvalidPageID
			t.hdr.LastLeaf = disk.InvalidPageID
			if err := t.freeNode(n); err != nil {
				return err
			}
			t.unpin(n, true)
			return nil
		}
		if err := n.flushHeader(); err != nil {
			t.unpin(n, true)
			return err
		}
		t.unpin(n, true)
		return nil
	}

	if n.size() == 1 {
		childNo := n.childAt(0)
		child, err := t.fetchNode(childNo)
		if err != nil {
			t.unpin(n, true)
			return err
		}
		child.header.Parent = disk.InvalidPageID
		if err := child.flushHeader(); err != nil {
			t.unpin(n, true)
			t.unpin(child, true)
			return err
		}
		t.hdr.RootPage = childNo

		if err := t.freeNode(n); err != nil {
			t.unpin(n, true)
			t.unpin(child, true)
			return err
		}
		t.unpin(n, true)
		t.unpin(child, true)
		return nil
	}

	if err := n.flushHeader(); err != nil {
		t.unpin(n, true)
		return err
	}
	t.unpin(n, true)
	return nil
}
