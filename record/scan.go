package record

import "github.com/corvusdb/corvus/buffer"

// Scan is a lazy, finite, forward-only iterator over every occupied
// slot of a record file, in (page_no, slot_no) order. It holds no pin
// between calls: each Next fetches and unpins internally.
type Scan struct {
	file    *FileHandle
	pageNo  int64
	slotNo  int
	done    bool
}

// NewScan starts a scan at the first record page (page 1; page 0 is
// the header and is never scanned).
func NewScan(f *FileHandle) *Scan {
	return &Scan{file: f, pageNo: 1, slotNo: -1}
}

// Next advances to the next occupied slot and returns its Rid, or
// InvalidRid once every page has been exhausted.
func (s *Scan) Next() (Rid, error) {
	if s.done {
		return InvalidRid, nil
	}

	for s.pageNo < s.file.hdr.NumPages {
		g, err := s.file.bpm.FetchPage(buffer.PageID{Fd: s.file.fd, PageNo: s.pageNo})
		if err != nil {
			return InvalidRid, err
		}
		rph, err := s.file.decodePage(g)
		if err != nil {
			g.Unpin(false)
			return InvalidRid, err
		}

		next := nextSetBit(rph.bitmap, s.slotNo+1, s.file.slotsPerPage())
		g.Unpin(false)

		if next < s.file.slotsPerPage() {
			s.slotNo = next
			return Rid{PageNo: s.pageNo, SlotNo: s.slotNo}, nil
		}

		s.pageNo++
		s.slotNo = -1
	}

	s.done = true
	return InvalidRid, nil
}

// Done reports whether the scan has been exhausted.
func (s *Scan) Done() bool {
	return s.done
}

// nextSetBit returns the smallest index >= from, < n, whose bit is
// set in bitmap, or n if none is found.
func nextSetBit(bitmap []byte, from, n int) int {
	for i := from; i < n; i++ {
		if bitSet(bitmap, i) {
			return i
		}
	}
	return n
}
