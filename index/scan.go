package index

import (
	"github.com/corvusdb/corvus/record"
	"github.com/corvusdb/corvus/storage/disk"
)

// IxScan is a forward-only range-scan cursor over [lo, hi], resolved
// once at construction to a pair of Iids and then walked by chasing
// next_leaf links. It holds no pin between calls, per spec §4.5.4.
type IxScan struct {
	tree *Tree
	cur  Iid
	end  Iid
	done bool
}

// NewRangeScan starts a scan over every entry with key >= lo and
// key <= hi.
func NewRangeScan(t *Tree, lo, hi []byte) (*IxScan, error) {
	cur, err := t.LowerBound(lo)
	if err != nil {
		return nil, err
	}
	end, err := t.UpperBound(hi)
	if err != nil {
		return nil, err
	}
	return &IxScan{tree: t, cur: cur, end: end, done: cur == end || cur.PageNo == disk.InvalidPageID}, nil
}

// Next returns the RID at the cursor and advances it, or ok=false once
// the scan is exhausted.
func (s *IxScan) Next() (record.Rid, bool, error) {
	if s.done {
		return record.Rid{}, false, nil
	}

	rid, err := s.tree.GetRid(s.cur)
	if err != nil {
		return record.Rid{}, false, err
	}

	next, err := s.tree.advance(s.cur)
	if err != nil {
		return record.Rid{}, false, err
	}
	s.cur = next
	if s.cur == s.end || s.cur.PageNo == disk.InvalidPageID {
		s.done = true
	}
	return rid, true, nil
}

// Done reports whether the scan has been exhausted.
func (s *IxScan) Done() bool {
	return s.done
}
