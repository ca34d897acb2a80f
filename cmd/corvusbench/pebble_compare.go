package main

import (
	"encoding/csv"
	"fmt"
	"path"
	"time"

	"github.com/cockroachdb/pebble"
)

// runPebbleSuite drives the same insert/get/range-scan workload against
// a pebble.DB at dataDir, so its LSM-tree write/read/scan costs can be
// read off the same chart as the B+tree's, per the -compare flag.
func runPebbleSuite(w *csv.Writer, dataDir string, n int) error {
	db, err := pebble.Open(path.Join(dataDir, "bench.pebble"), &pebble.Options{})
	if err != nil {
		return fmt.Errorf("corvusbench: open pebble: %w", err)
	}
	defer db.Close()

	start := time.Now()
	for k := 0; k < n; k++ {
		if err := db.Set(keyOf(int64(k)), keyOf(int64(k)), pebble.NoSync); err != nil {
			return fmt.Errorf("corvusbench: pebble set: %w", err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)
	recordRow(w, BenchResult{"pebble-lsm", "Insert", insertLatency, memStats()})

	start = time.Now()
	for k := 0; k < n; k++ {
		val, closer, err := db.Get(keyOf(int64(k)))
		if err != nil && err != pebble.ErrNotFound {
			return fmt.Errorf("corvusbench: pebble get: %w", err)
		}
		if err == nil {
			closer.Close()
			_ = val
		}
	}
	getLatency := time.Since(start).Nanoseconds() / int64(n)
	recordRow(w, BenchResult{"pebble-lsm", "Get", getLatency, memStats()})

	const rangeWidth = 100
	start = time.Now()
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: keyOf(0),
		UpperBound: keyOf(int64(rangeWidth + 1)),
	})
	if err != nil {
		return fmt.Errorf("corvusbench: pebble range: %w", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
	}
	iter.Close()
	scanLatency := time.Since(start).Nanoseconds() / int64(rangeWidth)
	recordRow(w, BenchResult{"pebble-lsm", "RangeScan", scanLatency, memStats()})

	return nil
}
