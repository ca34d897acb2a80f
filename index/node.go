// Package index implements the B+tree index: fixed-width byte keys
// compared with bytes.Compare, a doubly-linked leaf list, and the
// split/redistribute/coalesce mutation algorithms that keep every node
// within [min_size, max_size) occupancy.
package index

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/buffer"
	"github.com/corvusdb/corvus/codec"
	"github.com/corvusdb/corvus/record"
	"github.com/corvusdb/corvus/storage/disk"
	"github.com/corvusdb/corvus/storagelog"
)

var log = storagelog.For("index")

const nodeHeaderSize = 128

// valueSize is the fixed width of one value slot: a record.Rid in a
// leaf (8-byte page_no + 4-byte slot_no) or a child page number in an
// internal node (8 bytes, with the remaining 4 bytes unused).
const valueSize = 12

// nodeHeader is the per-page metadata described in spec §3's index
// node page layout.
type nodeHeader struct {
	IsLeaf         bool
	NumKeys        int
	Parent         int64
	NextLeaf       int64
	PrevLeaf       int64
	NextFreePageNo int64
}

// node is a pinned view over one index page: its decoded header plus
// the raw keys/values regions, which are never copied through a codec
// so that key comparisons stay byte-exact.
type node struct {
	guard  *buffer.PageGuard
	header nodeHeader
	colLen int
	maxKey int
	keys   []byte
	values []byte
}

// maxKeysFor returns the largest btree_order a col_len-byte-keyed index
// can physically address: how many key/value slots fit in one page
// alongside the node header. It is the capacity ceiling order is
// validated against, not the order itself — order is an independently
// stored file-header field (spec §3) that may be set lower than this.
func maxKeysFor(colLen int) int {
	available := buffer.PayloadSize - nodeHeaderSize
	return available / (colLen + valueSize)
}

func decodeNode(g *buffer.PageGuard, colLen, order int) (*node, error) {
	data := g.Data()
	h, err := codec.Decode[nodeHeader](data[:nodeHeaderSize])
	if err != nil {
		return nil, errors.Wrap(err, "decode node header")
	}

	keysStart := nodeHeaderSize
	keysEnd := keysStart + order*colLen
	valuesEnd := keysEnd + order*valueSize

	return &node{
		guard:  g,
		header: h,
		colLen: colLen,
		maxKey: order,
		keys:   data[keysStart:keysEnd],
		values: data[keysEnd:valuesEnd],
	}, nil
}

func initNode(g *buffer.PageGuard, colLen, order int, isLeaf bool, parent int64) (*node, error) {
	// a fresh page holds no encoded header yet, so it is not decoded.
	data := g.Data()
	keysEnd := nodeHeaderSize + order*colLen
	n := &node{
		guard:  g,
		colLen: colLen,
		maxKey: order,
		keys:   data[nodeHeaderSize:keysEnd],
		values: data[keysEnd : keysEnd+order*valueSize],
	}
	n.header = nodeHeader{
		IsLeaf:         isLeaf,
		NumKeys:        0,
		Parent:         parent,
		NextLeaf:       disk.InvalidPageID,
		PrevLeaf:       disk.InvalidPageID,
		NextFreePageNo: disk.InvalidPageID,
	}
	return n, n.flushHeader()
}

func (n *node) flushHeader() error {
	buf, err := codec.Encode(n.header, nodeHeaderSize)
	if err != nil {
		return errors.Wrap(err, "encode node header")
	}
	copy(n.guard.Data()[:nodeHeaderSize], buf)
	return nil
}

func (n *node) pageID() int64 { return n.guard.PageID.PageNo }

func (n *node) size() int { return n.header.NumKeys }

func (n *node) maxSize() int { return n.maxKey }

func (n *node) minSize() int { return (n.maxKey + 1) / 2 }

func (n *node) isLeaf() bool { return n.header.IsLeaf }

func (n *node) keyAt(i int) []byte {
	return n.keys[i*n.colLen : (i+1)*n.colLen]
}

func (n *node) setKeyAt(i int, key []byte) {
	copy(n.keyAt(i), key)
}

func (n *node) valueAt(i int) []byte {
	return n.values[i*valueSize : (i+1)*valueSize]
}

func (n *node) setValueAt(i int, value []byte) {
	copy(n.valueAt(i), value)
}

func (n *node) childAt(i int) int64 {
	return decodeChild(n.valueAt(i))
}

func (n *node) setChildAt(i int, pageNo int64) {
	encodeChild(n.valueAt(i), pageNo)
}

func (n *node) ridAt(i int) record.Rid {
	return decodeRid(n.valueAt(i))
}

func (n *node) setRidAt(i int, rid record.Rid) {
	encodeRid(n.valueAt(i), rid)
}

// shiftRight opens a gap of one slot at idx, moving [idx, size) up by one.
func (n *node) shiftRight(idx int) {
	for i := n.size(); i > idx; i-- {
		n.setKeyAt(i, n.keyAt(i-1))
		copy(n.valueAt(i), n.valueAt(i-1))
	}
}

// shiftLeft closes the gap at idx, moving [idx+1, size) down by one.
func (n *node) shiftLeft(idx int) {
	for i := idx; i < n.size()-1; i++ {
		n.setKeyAt(i, n.keyAt(i+1))
		copy(n.valueAt(i), n.valueAt(i+1))
	}
}

// insertIdx returns the position a key belongs at under byte-wise
// comparison: the first index whose key is >= key.
func (n *node) insertIdx(key []byte) int {
	lo, hi := 0, n.size()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if bytes.Compare(n.keyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func decodeChild(buf []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v = v<<8 | int64(buf[i])
	}
	return v
}

func encodeChild(buf []byte, pageNo int64) {
	for i := 7; i >= 0; i-- {
		buf[i] = byte(pageNo)
		pageNo >>= 8
	}
	buf[8], buf[9], buf[10], buf[11] = 0, 0, 0, 0
}

func decodeRid(buf []byte) record.Rid {
	var pageNo int64
	for i := 0; i < 8; i++ {
		pageNo = pageNo<<8 | int64(buf[i])
	}
	var slotNo int32
	for i := 8; i < 12; i++ {
		slotNo = slotNo<<8 | int32(buf[i])
	}
	return record.Rid{PageNo: pageNo, SlotNo: int(slotNo)}
}

func encodeRid(buf []byte, rid record.Rid) {
	pageNo := rid.PageNo
	for i := 7; i >= 0; i-- {
		buf[i] = byte(pageNo)
		pageNo >>= 8
	}
	slotNo := int32(rid.SlotNo)
	for i := 11; i >= 8; i-- {
		buf[i] = byte(slotNo)
		slotNo >>= 8
	}
}
