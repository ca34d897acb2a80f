package buffer

import "github.com/corvusdb/corvus/storagelog"

var log = storagelog.For("buffer")
