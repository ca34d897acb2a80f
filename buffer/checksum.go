package buffer

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/corvusdb/corvus/storage/disk"
)

// checksumSize is the trailing byte count of every page reserved for
// its xxhash-64 checksum, per the §3 addition in SPEC_FULL.md.
const checksumSize = 8

// PayloadSize is how many bytes of a disk.PageSize page are available
// to record/index layout math once the trailing checksum is reserved.
const PayloadSize = disk.PageSize - checksumSize

func stampChecksum(page []byte) {
	sum := xxhash.Sum64(page[:PayloadSize])
	binary.BigEndian.PutUint64(page[PayloadSize:], sum)
}

func verifyChecksum(page []byte) bool {
	want := binary.BigEndian.Uint64(page[PayloadSize:])
	got := xxhash.Sum64(page[:PayloadSize])
	return want == got
}
