// Package record implements the slotted-page record file: fixed-size
// records packed into bitmap-indexed slots, a singly-linked free-page
// list threaded through page headers, and a forward-only scan.
package record

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/buffer"
	"github.com/corvusdb/corvus/codec"
	"github.com/corvusdb/corvus/errs"
	"github.com/corvusdb/corvus/storage/disk"
	"github.com/corvusdb/corvus/storagelog"
)

var log = storagelog.For("record")

// headerSize is the msgpack budget reserved for FileHeader at the
// front of page 0; the rest of page 0 goes unused, matching the
// original's raw-struct header page.
const headerSize = 128

// FileHeader is serialized to page 0 of a record file, outside the
// buffer pool, per spec §6.
type FileHeader struct {
	RecordSize        int
	NumRecordsPerPage int
	NumPages          int64
	FirstFreePageNo    int64
	BitmapSize        int
}

// Rid is the stable identity of a record until its slot is deleted.
type Rid struct {
	PageNo int64
	SlotNo int
}

// InvalidRid is the scan-end sentinel, {-1, -1}.
var InvalidRid = Rid{PageNo: disk.InvalidPageID, SlotNo: -1}

// pageHeader sits at the front of every record page (pages 1..num_pages-1).
type pageHeader struct {
	NextFreePageNo int64
	NumRecords     int
}

const pageHeaderSize = 64

// FileHandle owns one open record file: its header, and access to the
// buffer pool and disk manager backing it.
type FileHandle struct {
	hdr  FileHeader
	fd   int
	bpm  *buffer.BufferPoolManager
	disk *disk.Manager
}

// computeLayout derives NumRecordsPerPage and BitmapSize for recordSize
// bytes per record, the same capacity math as the original's rm_defs.
func computeLayout(recordSize int) (numRecords, bitmapSize int) {
	available := buffer.PayloadSize - pageHeaderSize
	// 1 bit of bitmap plus 1 slot per record; solve for floor(n) such that
	// n*recordSize + ceil(n/8) <= available.
	for n := available / recordSize; n > 0; n-- {
		bm := (n + 7) / 8
		if n*recordSize+bm <= available {
			return n, bm
		}
	}
	return 0, 0
}

// CreateFile initializes a new record file at path with the given
// per-record size, writing the zeroed header directly to page 0
// through dm (page 0 is never routed through the buffer pool).
func CreateFile(dm *disk.Manager, path string, recordSize int) error {
	if err := dm.CreateFile(path); err != nil {
		return err
	}

	numRecords, bitmapSize := computeLayout(recordSize)
	hdr := FileHeader{
		RecordSize:        recordSize,
		NumRecordsPerPage: numRecords,
		NumPages:          1,
		FirstFreePageNo:   disk.InvalidPageID,
		BitmapSize:        bitmapSize,
	}

	fd, err := dm.OpenFile(path)
	if err != nil {
		return err
	}
	defer dm.CloseFile(fd)

	buf, err := codec.Encode(hdr, headerSize)
	if err != nil {
		return errors.Wrap(err, "create record file: encode header")
	}
	page := make([]byte, disk.PageSize)
	copy(page, buf)
	return dm.WritePage(fd, 0, page)
}

// OpenFile opens an existing record file, reading its header and
// restoring the disk manager's page-id counter to num_pages.
func OpenFile(dm *disk.Manager, bpm *buffer.BufferPoolManager, path string) (*FileHandle, error) {
	fd, err := dm.OpenFile(path)
	if err != nil {
		return nil, err
	}

	page := make([]byte, disk.PageSize)
	if err := dm.ReadPage(fd, 0, page); err != nil {
		return nil, errors.Wrap(err, "open record file: read header")
	}
	hdr, err := codec.Decode[FileHeader](page[:headerSize])
	if err != nil {
		return nil, errors.Wrap(err, "open record file: decode header")
	}

	if err := dm.SetPageCounter(fd, hdr.NumPages); err != nil {
		return nil, err
	}

	return &FileHandle{hdr: hdr, fd: fd, bpm: bpm, disk: dm}, nil
}

// Close persists the file header and closes the underlying fd.
func (f *FileHandle) Close() error {
	if err := f.writeHeader(); err != nil {
		return err
	}
	return f.disk.CloseFile(f.fd)
}

func (f *FileHandle) writeHeader() error {
	buf, err := codec.Encode(f.hdr, headerSize)
	if err != nil {
		return errors.Wrap(err, "write record header")
	}
	page := make([]byte, disk.PageSize)
	copy(page, buf)
	return f.disk.WritePage(f.fd, 0, page)
}

func (f *FileHandle) bitmapSize() int  { return f.hdr.BitmapSize }
func (f *FileHandle) slotSize() int    { return f.hdr.RecordSize }
func (f *FileHandle) slotsPerPage() int { return f.hdr.NumRecordsPerPage }

// recordPageHandle is a pinned view of one record page, decomposed into
// its header, bitmap, and slot region.
type recordPageHandle struct {
	guard  *buffer.PageGuard
	header pageHeader
	bitmap []byte
	slots  []byte
}

func (f *FileHandle) decodePage(g *buffer.PageGuard) (*recordPageHandle, error) {
	data := g.Data()
	hdrBuf := data[:pageHeaderSize]
	h, err := codec.Decode[pageHeader](hdrBuf)
	if err != nil {
		return nil, errors.Wrap(err, "decode page header")
	}
	bmStart := pageHeaderSize
	bmEnd := bmStart + f.bitmapSize()
	return &recordPageHandle{
		guard:  g,
		header: h,
		bitmap: data[bmStart:bmEnd],
		slots:  data[bmEnd:],
	}, nil
}

func (rph *recordPageHandle) encodeHeader() error {
	buf, err := codec.Encode(rph.header, pageHeaderSize)
	if err != nil {
		return errors.Wrap(err, "encode page header")
	}
	copy(rph.guard.Data()[:pageHeaderSize], buf)
	return nil
}

func (rph *recordPageHandle) slot(i, size int) []byte {
	return rph.slots[i*size : (i+1)*size]
}

// GetRecord fetches page rid.PageNo, copies RecordSize bytes from
// slot rid.SlotNo, and unpins non-dirty.
func (f *FileHandle) GetRecord(rid Rid) ([]byte, error) {
	if rid.PageNo >= f.hdr.NumPages {
		return nil, errors.Wrapf(errs.ErrPageNotExist, "get record %+v", rid)
	}

	g, err := f.bpm.FetchPage(buffer.PageID{Fd: f.fd, PageNo: rid.PageNo})
	if err != nil {
		return nil, errors.Wrapf(err, "get record %+v", rid)
	}
	defer g.Unpin(false)

	rph, err := f.decodePage(g)
	if err != nil {
		return nil, err
	}
	if !bitSet(rph.bitmap, rid.SlotNo) {
		return nil, errors.Wrapf(errs.ErrRecordNotExist, "get record %+v", rid)
	}

	out := make([]byte, f.slotSize())
	copy(out, rph.slot(rid.SlotNo, f.slotSize()))
	return out, nil
}

// InsertRecord writes buf (exactly RecordSize bytes) into the first
// free slot of a free page, returning its Rid.
func (f *FileHandle) InsertRecord(buf []byte) (Rid, error) {
	if len(buf) != f.slotSize() {
		return InvalidRid, errors.Errorf("insert record: buf is %d bytes, want %d", len(buf), f.slotSize())
	}

	g, pageNo, err := f.createPageHandle()
	if err != nil {
		return InvalidRid, err
	}

	rph, err := f.decodePage(g)
	if err != nil {
		g.Unpin(false)
		return InvalidRid, err
	}

	slotNo := firstClearBit(rph.bitmap, f.slotsPerPage())
	setBit(rph.bitmap, slotNo)
	copy(rph.slot(slotNo, f.slotSize()), buf)

	rph.header.NumRecords++
	if rph.header.NumRecords == f.slotsPerPage() {
		f.hdr.FirstFreePageNo = rph.header.NextFreePageNo
	}
	if err := rph.encodeHeader(); err != nil {
		g.Unpin(true)
		return InvalidRid, err
	}

	g.Unpin(true)
	return Rid{PageNo: pageNo, SlotNo: slotNo}, nil
}

// DeleteRecord clears rid's bitmap bit and decrements num_records,
// releasing the page to the free list if it was previously full.
func (f *FileHandle) DeleteRecord(rid Rid) error {
	g, err := f.bpm.FetchPage(buffer.PageID{Fd: f.fd, PageNo: rid.PageNo})
	if err != nil {
		return errors.Wrapf(err, "delete record %+v", rid)
	}

	rph, err := f.decodePage(g)
	if err != nil {
		g.Unpin(false)
		return err
	}

	wasFull := rph.header.NumRecords == f.slotsPerPage()
	rph.header.NumRecords--
	clearBit(rph.bitmap, rid.SlotNo)
	if err := rph.encodeHeader(); err != nil {
		g.Unpin(true)
		return err
	}
	g.Unpin(true)

	if wasFull {
		f.releasePageHandle(rid.PageNo, &rph.header)
	}
	return nil
}

// UpdateRecord overwrites rid's slot contents in place.
func (f *FileHandle) UpdateRecord(rid Rid, buf []byte) error {
	if len(buf) != f.slotSize() {
		return errors.Errorf("update record: buf is %d bytes, want %d", len(buf), f.slotSize())
	}

	g, err := f.bpm.FetchPage(buffer.PageID{Fd: f.fd, PageNo: rid.PageNo})
	if err != nil {
		return errors.Wrapf(err, "update record %+v", rid)
	}
	defer g.Unpin(true)

	rph, err := f.decodePage(g)
	if err != nil {
		return err
	}
	copy(rph.slot(rid.SlotNo, f.slotSize()), buf)
	return nil
}

// createPageHandle returns a pinned free page (never removing it from
// the free list itself), allocating a fresh one if none is free.
func (f *FileHandle) createPageHandle() (*buffer.PageGuard, int64, error) {
	if f.hdr.FirstFreePageNo == disk.InvalidPageID {
		return f.createNewPageHandle()
	}

	pageNo := f.hdr.FirstFreePageNo
	g, err := f.bpm.FetchPage(buffer.PageID{Fd: f.fd, PageNo: pageNo})
	if err != nil {
		return nil, disk.InvalidPageID, errors.Wrapf(err, "fetch free page %d", pageNo)
	}
	return g, pageNo, nil
}

func (f *FileHandle) createNewPageHandle() (*buffer.PageGuard, int64, error) {
	g, err := f.bpm.NewPage(f.fd)
	if err != nil {
		return nil, disk.InvalidPageID, errors.Wrap(err, "create new record page")
	}

	h := pageHeader{NextFreePageNo: disk.InvalidPageID, NumRecords: 0}
	buf, err := codec.Encode(h, pageHeaderSize)
	if err != nil {
		g.Unpin(false)
		return nil, disk.InvalidPageID, errors.Wrap(err, "create new record page: encode header")
	}
	copy(g.Data()[:pageHeaderSize], buf)

	f.hdr.NumPages++
	f.hdr.FirstFreePageNo = g.PageID.PageNo

	log.WithField("page_no", g.PageID.PageNo).Debug("allocated new record page")
	return g, g.PageID.PageNo, nil
}

// releasePageHandle pushes pageNo to the head of the free list by
// swapping FirstFreePageNo with the page's own NextFreePageNo.
func (f *FileHandle) releasePageHandle(pageNo int64, hdr *pageHeader) {
	hdr.NextFreePageNo, f.hdr.FirstFreePageNo = f.hdr.FirstFreePageNo, pageNo

	g, err := f.bpm.FetchPage(buffer.PageID{Fd: f.fd, PageNo: pageNo})
	if err != nil {
		log.WithError(err).WithField("page_no", pageNo).Error("release page handle: fetch failed")
		return
	}
	buf, err := codec.Encode(*hdr, pageHeaderSize)
	if err != nil {
		g.Unpin(false)
		log.WithError(err).Error("release page handle: encode failed")
		return
	}
	copy(g.Data()[:pageHeaderSize], buf)
	g.Unpin(true)
}

func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<(uint(i)%8)) != 0
}

func setBit(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << (uint(i) % 8)
}

func clearBit(bitmap []byte, i int) {
	bitmap[i/8] &^= 1 << (uint(i) % 8)
}

// firstClearBit returns the index of the first unset bit among the
// first n bits of bitmap, or n if all are set.
func firstClearBit(bitmap []byte, n int) int {
	for byteIdx, b := range bitmap {
		if b == 0xFF {
			continue
		}
		inv := ^b
		bit := bits.TrailingZeros8(inv)
		idx := byteIdx*8 + bit
		if idx < n {
			return idx
		}
	}
	return n
}
