// Package errs holds the sentinel errors shared by every layer of the
// storage core. Callers compare against these with errors.Is; a call
// site that reports one of these conditions wraps the sentinel with
// errors.Wrap/Wrapf, so the sentinel survives the wrap. Errors outside
// this taxonomy (e.g. a wrong buffer length) are plain errors.Errorf values.
package errs

import "errors"

var (
	ErrFileExists          = errors.New("file already exists")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileInUse           = errors.New("file is open and cannot be modified")
	ErrFileNotOpen         = errors.New("file is not open")
	ErrIO                  = errors.New("i/o error")
	ErrPageNotExist        = errors.New("page does not exist")
	ErrPageCorrupt         = errors.New("page checksum mismatch")
	ErrNoFreeFrame         = errors.New("no free frame available in buffer pool")
	ErrIndexEntryNotFound  = errors.New("index entry not found")
	ErrReplacerOverflow    = errors.New("replacer eligible set would exceed capacity")
	ErrRecordNotExist      = errors.New("record does not exist")
	ErrNotEvictable        = errors.New("frame is not evictable")
	ErrDuplicateKey        = errors.New("duplicate key")
)
