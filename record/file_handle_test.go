package record

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/buffer"
	"github.com/corvusdb/corvus/errs"
	"github.com/corvusdb/corvus/storage/disk"
)

func newTestFile(t *testing.T, recordSize int) *FileHandle {
	t.Helper()
	dir := t.TempDir()
	dm := disk.NewManager(dir)
	p := path.Join(dir, "test.rec")
	require.NoError(t, CreateFile(dm, p, recordSize))

	bpm := buffer.NewBufferPoolManager(8, buffer.NewLRUReplacer(8), dm)
	f, err := OpenFile(dm, bpm, p)
	require.NoError(t, err)
	return f
}

func recordOf(size int, s string) []byte {
	buf := make([]byte, size)
	copy(buf, []byte(s))
	return buf
}

func TestFileHandle(t *testing.T) {
	t.Run("insert then get round-trips", func(t *testing.T) {
		f := newTestFile(t, 16)
		rid, err := f.InsertRecord(recordOf(16, "hello"))
		require.NoError(t, err)

		got, err := f.GetRecord(rid)
		require.NoError(t, err)
		assert.Equal(t, recordOf(16, "hello"), got)
	})

	t.Run("delete then get fails with ErrRecordNotExist", func(t *testing.T) {
		f := newTestFile(t, 16)
		rid, err := f.InsertRecord(recordOf(16, "a"))
		require.NoError(t, err)

		require.NoError(t, f.DeleteRecord(rid))
		_, err = f.GetRecord(rid)
		assert.ErrorIs(t, err, errs.ErrRecordNotExist)
	})

	t.Run("update overwrites slot contents", func(t *testing.T) {
		f := newTestFile(t, 16)
		rid, err := f.InsertRecord(recordOf(16, "before"))
		require.NoError(t, err)

		require.NoError(t, f.UpdateRecord(rid, recordOf(16, "after")))
		got, err := f.GetRecord(rid)
		require.NoError(t, err)
		assert.Equal(t, recordOf(16, "after"), got)
	})

	t.Run("get on an out-of-range page fails with ErrPageNotExist", func(t *testing.T) {
		f := newTestFile(t, 16)
		_, err := f.GetRecord(Rid{PageNo: 99, SlotNo: 0})
		assert.ErrorIs(t, err, errs.ErrPageNotExist)
	})

	t.Run("filling a page unlinks it from the free list", func(t *testing.T) {
		f := newTestFile(t, 16)
		n := f.slotsPerPage()

		var last Rid
		for i := 0; i < n; i++ {
			rid, err := f.InsertRecord(recordOf(16, "x"))
			require.NoError(t, err)
			last = rid
		}
		assert.NotEqual(t, disk.InvalidPageID, last.PageNo)

		// the page that just filled is no longer the free-list head;
		// the next insert must allocate a fresh page.
		rid, err := f.InsertRecord(recordOf(16, "y"))
		require.NoError(t, err)
		assert.NotEqual(t, last.PageNo, rid.PageNo)
	})

	t.Run("deleting from a full page returns it to the free list", func(t *testing.T) {
		f := newTestFile(t, 16)
		n := f.slotsPerPage()

		rids := make([]Rid, 0, n)
		for i := 0; i < n; i++ {
			rid, err := f.InsertRecord(recordOf(16, "x"))
			require.NoError(t, err)
			rids = append(rids, rid)
		}
		fullPage := rids[0].PageNo

		require.NoError(t, f.DeleteRecord(rids[0]))
		rid, err := f.InsertRecord(recordOf(16, "z"))
		require.NoError(t, err)
		assert.Equal(t, fullPage, rid.PageNo)
	})

	t.Run("scan visits every occupied slot in order", func(t *testing.T) {
		f := newTestFile(t, 16)
		n := f.slotsPerPage()

		want := make([]Rid, 0, n+2)
		for i := 0; i < n+2; i++ {
			rid, err := f.InsertRecord(recordOf(16, "v"))
			require.NoError(t, err)
			want = append(want, rid)
		}

		s := NewScan(f)
		got := make([]Rid, 0, len(want))
		for {
			rid, err := s.Next()
			require.NoError(t, err)
			if rid == InvalidRid {
				break
			}
			got = append(got, rid)
		}
		assert.ElementsMatch(t, want, got)
	})

	t.Run("scan on an empty file terminates immediately", func(t *testing.T) {
		f := newTestFile(t, 16)
		s := NewScan(f)
		rid, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, InvalidRid, rid)
	})
}
