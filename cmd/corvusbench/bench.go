package main

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"os"
	"path"
	"runtime"
	"strconv"
	"time"

	"github.com/corvusdb/corvus/buffer"
	"github.com/corvusdb/corvus/config"
	"github.com/corvusdb/corvus/index"
	"github.com/corvusdb/corvus/record"
	"github.com/corvusdb/corvus/storage/disk"
)

const keyLen = 8

// BenchResult is one measured row, written to both the CSV and the
// latency chart.
type BenchResult struct {
	Structure string
	Operation string
	LatencyNs int64
	AllocMB   uint64
}

// memStats forces a GC before sampling, so two successive measurements
// reflect live data rather than accumulated garbage.
func memStats() uint64 {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}

// readBack reparses the CSV just written, so the chart reflects exactly
// what was recorded rather than values carried over in memory.
func readBack(csvPath string) ([]BenchResult, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	var results []BenchResult
	for _, row := range rows[1:] {
		latency, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corvusbench: parse latency: %w", err)
		}
		allocMB, err := strconv.ParseUint(row[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corvusbench: parse alloc: %w", err)
		}
		results = append(results, BenchResult{
			Structure: row[0],
			Operation: row[1],
			LatencyNs: latency,
			AllocMB:   allocMB,
		})
	}
	return results, nil
}

func recordRow(w *csv.Writer, r BenchResult) {
	w.Write([]string{
		r.Structure,
		r.Operation,
		fmt.Sprintf("%d", r.LatencyNs),
		fmt.Sprintf("%d", r.AllocMB),
	})
}

func keyOf(k int64) []byte {
	buf := make([]byte, keyLen)
	binary.BigEndian.PutUint64(buf, uint64(k))
	return buf
}

// runCorvusSuite drives insert/get/range-scan against this module's own
// B+tree, backed by a real buffer pool and disk manager at dataDir.
func runCorvusSuite(w *csv.Writer, cfg config.EngineConfig, dataDir string, n int) error {
	dm := disk.NewManager(dataDir)
	idxPath := path.Join(dataDir, "bench.idx")
	if err := index.CreateFile(dm, idxPath, keyLen, 0); err != nil {
		return fmt.Errorf("corvusbench: create index: %w", err)
	}

	var replacer buffer.Replacer
	if cfg.ReplacerPolicy == config.ReplacerClock {
		replacer = buffer.NewClockReplacer(cfg.PoolSize)
	} else {
		replacer = buffer.NewLRUReplacer(cfg.PoolSize)
	}
	bpm := buffer.NewBufferPoolManager(cfg.PoolSize, replacer, dm)

	tr, err := index.OpenFile(dm, bpm, idxPath)
	if err != nil {
		return fmt.Errorf("corvusbench: open index: %w", err)
	}
	defer func() {
		bpm.FlushAll()
		tr.Close()
	}()

	start := time.Now()
	for k := 0; k < n; k++ {
		if _, err := tr.InsertEntry(keyOf(int64(k)), record.Rid{PageNo: int64(k), SlotNo: k % 16}); err != nil {
			return fmt.Errorf("corvusbench: insert: %w", err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)
	recordRow(w, BenchResult{"corvus-bplustree", "Insert", insertLatency, memStats()})

	start = time.Now()
	for k := 0; k < n; k++ {
		if _, _, err := tr.GetValue(keyOf(int64(k))); err != nil {
			return fmt.Errorf("corvusbench: get: %w", err)
		}
	}
	getLatency := time.Since(start).Nanoseconds() / int64(n)
	recordRow(w, BenchResult{"corvus-bplustree", "Get", getLatency, memStats()})

	const rangeWidth = 100
	start = time.Now()
	s, err := index.NewRangeScan(tr, keyOf(0), keyOf(int64(rangeWidth)))
	if err != nil {
		return fmt.Errorf("corvusbench: range scan: %w", err)
	}
	for {
		_, ok, err := s.Next()
		if err != nil {
			return fmt.Errorf("corvusbench: range scan: %w", err)
		}
		if !ok {
			break
		}
	}
	scanLatency := time.Since(start).Nanoseconds() / int64(rangeWidth)
	recordRow(w, BenchResult{"corvus-bplustree", "RangeScan", scanLatency, memStats()})

	return nil
}
