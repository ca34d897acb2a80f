package disk

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/errs"
)

func tempDir(t *testing.T) string {
	dir := t.TempDir()
	return dir
}

func TestManager(t *testing.T) {
	t.Run("create then open then close a file", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		p := path.Join(dir, "test.db")

		require.NoError(t, m.CreateFile(p))
		assert.ErrorIs(t, m.CreateFile(p), errs.ErrFileExists)

		fd, err := m.OpenFile(p)
		require.NoError(t, err)

		_, err = m.OpenFile(p)
		assert.Error(t, err)

		require.NoError(t, m.CloseFile(fd))
	})

	t.Run("open missing file fails", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		_, err := m.OpenFile(path.Join(dir, "nope.db"))
		assert.Error(t, err)
	})

	t.Run("write then read a page round-trips", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		p := path.Join(dir, "test.db")
		require.NoError(t, m.CreateFile(p))

		fd, err := m.OpenFile(p)
		require.NoError(t, err)

		want := make([]byte, PageSize)
		copy(want, []byte("hello, world!"))
		require.NoError(t, m.WritePage(fd, 3, want))

		got := make([]byte, PageSize)
		require.NoError(t, m.ReadPage(fd, 3, got))
		assert.Equal(t, want, got)
	})

	t.Run("read with oversized buffer fails", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		p := path.Join(dir, "test.db")
		require.NoError(t, m.CreateFile(p))
		fd, err := m.OpenFile(p)
		require.NoError(t, err)

		buf := make([]byte, PageSize+1)
		assert.Error(t, m.ReadPage(fd, 0, buf))
	})

	t.Run("allocate page is a monotonic post-increment", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		p := path.Join(dir, "test.db")
		require.NoError(t, m.CreateFile(p))
		fd, err := m.OpenFile(p)
		require.NoError(t, err)

		first, err := m.AllocatePage(fd)
		require.NoError(t, err)
		second, err := m.AllocatePage(fd)
		require.NoError(t, err)

		assert.Equal(t, int64(0), first)
		assert.Equal(t, int64(1), second)

		require.NoError(t, m.SetPageCounter(fd, 10))
		third, err := m.AllocatePage(fd)
		require.NoError(t, err)
		assert.Equal(t, int64(10), third)
	})

	t.Run("destroy open file fails, destroy closed file succeeds", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		p := path.Join(dir, "test.db")
		require.NoError(t, m.CreateFile(p))
		fd, err := m.OpenFile(p)
		require.NoError(t, err)

		assert.Error(t, m.DestroyFile(p))

		require.NoError(t, m.CloseFile(fd))
		require.NoError(t, m.DestroyFile(p))
		assert.False(t, IsFile(p))
	})

	t.Run("log is append-only and readable from an offset", func(t *testing.T) {
		dir := tempDir(t)
		m := NewManager(dir)
		t.Cleanup(func() { _ = m.Close() })

		require.NoError(t, m.WriteLog([]byte("abc")))
		require.NoError(t, m.WriteLog([]byte("def")))

		buf := make([]byte, 10)
		n, ok, err := m.ReadLog(buf, 0, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abcdef", string(buf[:n]))

		n2, ok2, err := m.ReadLog(buf, 0, n)
		require.NoError(t, err)
		assert.False(t, ok2)
		assert.Equal(t, 0, n2)

		_, ok3, err := m.ReadLog(buf, 100, 0)
		require.NoError(t, err)
		assert.False(t, ok3)
	})

	t.Run("dir helpers", func(t *testing.T) {
		dir := tempDir(t)
		sub := path.Join(dir, "sub", "nested")
		require.NoError(t, CreateDir(sub))
		assert.True(t, IsDir(sub))
		require.NoError(t, DestroyDir(path.Join(dir, "sub")))
		assert.False(t, IsDir(sub))
	})
}
