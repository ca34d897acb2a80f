// Package disk implements raw paged I/O against POSIX files: the
// bottom layer of the storage core. It knows nothing about records or
// index nodes, only (fd, page_no) -> PAGE_SIZE-byte slices, plus an
// append-only log file shared by every open database.
package disk

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/corvusdb/corvus/errs"
	"github.com/corvusdb/corvus/storagelog"
)

// PageSize is the fixed unit of disk I/O and buffer-pool caching.
const PageSize = 4096

// InvalidPageID denotes "no page" throughout the core.
const InvalidPageID int64 = -1

const logFileName = "corvus.log"

var log = storagelog.For("disk")

// Manager owns every open file for one process: bijective path<->fd
// maps and a monotonic per-fd page-id counter. It is meant to be
// constructed once and shared by reference, not used as a singleton.
type Manager struct {
	mu sync.Mutex

	pathToFd map[string]int
	fdToFile map[int]*os.File
	fdToPath map[int]string
	nextFd   int

	counters map[int]*atomic.Int64

	dataDir string
	logFile *os.File
	logMu   sync.Mutex
}

// NewManager constructs a disk manager rooted at dataDir. dataDir must
// already exist; CreateDir/IsDir below are for callers that need to
// set up a fresh data directory first.
func NewManager(dataDir string) *Manager {
	return &Manager{
		pathToFd: make(map[string]int),
		fdToFile: make(map[int]*os.File),
		fdToPath: make(map[int]string),
		counters: make(map[int]*atomic.Int64),
		dataDir:  dataDir,
	}
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreateDir creates path and any missing parents. The original
// shelled out to mkdir(1) via system(3); this uses the OS filesystem
// API directly, per the §9 redesign note.
func CreateDir(path string) error {
	return os.MkdirAll(path, 0o777)
}

// DestroyDir removes path and everything under it.
func DestroyDir(path string) error {
	return os.RemoveAll(path)
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CreateFile creates a new, empty database file at path.
func (m *Manager) CreateFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if IsFile(path) {
		return errors.Wrapf(errs.ErrFileExists, "create %s", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "create %s: %v", path, err)
	}
	return f.Close()
}

// OpenFile opens path for paged I/O, failing if it is already open or
// does not exist. The returned fd is a handle local to this Manager,
// not a raw OS descriptor.
func (m *Manager) OpenFile(path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, open := m.pathToFd[path]; open {
		return -1, errors.Wrapf(errs.ErrFileInUse, "open %s", path)
	}
	if !IsFile(path) {
		return -1, errors.Wrapf(errs.ErrFileNotFound, "open %s", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return -1, errors.Wrapf(errs.ErrIO, "open %s: %v", path, err)
	}

	fd := m.nextFd
	m.nextFd++
	m.pathToFd[path] = fd
	m.fdToFile[fd] = f
	m.fdToPath[fd] = path
	m.counters[fd] = &atomic.Int64{}

	log.WithField("fd", fd).WithField("path", path).Debug("opened file")
	return fd, nil
}

// CloseFile closes fd, removing it from the open-file tables.
func (m *Manager) CloseFile(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.fdToPath[fd]
	if !ok {
		return errors.Wrapf(errs.ErrFileNotOpen, "close fd %d", fd)
	}

	f := m.fdToFile[fd]
	delete(m.pathToFd, path)
	delete(m.fdToFile, fd)
	delete(m.fdToPath, fd)
	delete(m.counters, fd)

	if err := f.Close(); err != nil {
		return errors.Wrapf(errs.ErrIO, "close fd %d: %v", fd, err)
	}
	return nil
}

// DestroyFile removes path from disk. It must be closed first.
func (m *Manager) DestroyFile(path string) error {
	m.mu.Lock()
	if _, open := m.pathToFd[path]; open {
		m.mu.Unlock()
		return errors.Wrapf(errs.ErrFileInUse, "destroy %s", path)
	}
	m.mu.Unlock()

	if !IsFile(path) {
		return errors.Wrapf(errs.ErrFileNotFound, "destroy %s", path)
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(errs.ErrIO, "destroy %s: %v", path, err)
	}
	return nil
}

// ReadPage reads exactly len(buf) bytes from page pageNo of fd.
func (m *Manager) ReadPage(fd int, pageNo int64, buf []byte) error {
	if len(buf) < 0 || len(buf) > PageSize {
		return errors.Wrapf(errs.ErrIO, "read page %d: invalid length %d", pageNo, len(buf))
	}

	f, err := m.fileFor(fd)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(buf, pageNo*PageSize)
	if err != nil && err != io.EOF {
		return errors.Wrapf(errs.ErrIO, "read page %d: %v", pageNo, err)
	}
	if n != len(buf) {
		return errors.Wrapf(errs.ErrIO, "read page %d: short read (%d of %d bytes)", pageNo, n, len(buf))
	}
	return nil
}

// WritePage writes exactly len(buf) bytes to page pageNo of fd.
func (m *Manager) WritePage(fd int, pageNo int64, buf []byte) error {
	if len(buf) < 0 || len(buf) > PageSize {
		return errors.Wrapf(errs.ErrIO, "write page %d: invalid length %d", pageNo, len(buf))
	}

	f, err := m.fileFor(fd)
	if err != nil {
		return err
	}

	n, err := f.WriteAt(buf, pageNo*PageSize)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "write page %d: %v", pageNo, err)
	}
	if n != len(buf) {
		return errors.Wrapf(errs.ErrIO, "write page %d: short write (%d of %d bytes)", pageNo, n, len(buf))
	}
	return nil
}

// AllocatePage returns fd's current page-id counter and post-increments it.
func (m *Manager) AllocatePage(fd int) (int64, error) {
	m.mu.Lock()
	counter, ok := m.counters[fd]
	m.mu.Unlock()
	if !ok {
		return InvalidPageID, errors.Wrapf(errs.ErrFileNotOpen, "allocate page on fd %d", fd)
	}
	return counter.Add(1) - 1, nil
}

// DeallocatePage is a no-op: space reclamation is the caller's
// responsibility via free-list headers, per spec §4.1.
func (m *Manager) DeallocatePage(fd int, pageNo int64) {}

// SetPageCounter restores fd's page-id counter, e.g. from a reopened
// file's header (num_pages, which for both record and index files
// already counts the header page 0).
func (m *Manager) SetPageCounter(fd int, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	counter, ok := m.counters[fd]
	if !ok {
		return errors.Wrapf(errs.ErrFileNotOpen, "set page counter on fd %d", fd)
	}
	counter.Store(value)
	return nil
}

func (m *Manager) fileFor(fd int) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fdToFile[fd]
	if !ok {
		return nil, errors.Wrapf(errs.ErrFileNotOpen, "fd %d", fd)
	}
	return f, nil
}

// WriteLog appends buf to the shared log file, opening it on first use.
func (m *Manager) WriteLog(buf []byte) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	if err := m.ensureLogOpen(); err != nil {
		return err
	}

	if _, err := m.logFile.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(errs.ErrIO, err.Error())
	}
	n, err := m.logFile.Write(buf)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "write log: %v", err)
	}
	if n != len(buf) {
		return errors.Wrapf(errs.ErrIO, "write log: short write (%d of %d bytes)", n, len(buf))
	}
	return nil
}

// ReadLog reads up to len(buf) bytes starting at offset+prevEnd. It
// returns false once that position reaches end of file.
func (m *Manager) ReadLog(buf []byte, offset, prevEnd int) (int, bool, error) {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	if err := m.ensureLogOpen(); err != nil {
		return 0, false, err
	}

	info, err := m.logFile.Stat()
	if err != nil {
		return 0, false, errors.Wrap(errs.ErrIO, err.Error())
	}

	pos := int64(offset + prevEnd)
	size := info.Size()
	if pos >= size {
		return 0, false, nil
	}

	want := len(buf)
	if remaining := size - pos; int64(want) > remaining {
		want = int(remaining)
	}

	n, err := m.logFile.ReadAt(buf[:want], pos)
	if err != nil && err != io.EOF {
		return 0, false, errors.Wrapf(errs.ErrIO, "read log: %v", err)
	}
	return n, true, nil
}

func (m *Manager) ensureLogOpen() error {
	if m.logFile != nil {
		return nil
	}
	f, err := os.OpenFile(m.dataDir+"/"+logFileName, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "open log file: %v", err)
	}
	m.logFile = f
	return nil
}

// Close closes the shared log file, if it was opened.
func (m *Manager) Close() error {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	if m.logFile == nil {
		return nil
	}
	err := m.logFile.Close()
	m.logFile = nil
	return err
}
