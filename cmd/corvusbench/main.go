// corvusbench drives an insert/get/range-scan workload against the
// storage core's B+tree index, optionally against a pebble.DB of the
// same size for comparison, and writes both a CSV and a latency chart.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/corvusdb/corvus/config"
	"github.com/corvusdb/corvus/storagelog"
)

func main() {
	var (
		n          = flag.Int("n", 100000, "number of keys to insert")
		configPath = flag.String("config", "", "path to a TOML engine config")
		compare    = flag.Bool("compare", false, "also benchmark a pebble.DB of the same size")
		csvPath    = flag.String("csv", "corvusbench.csv", "output CSV path")
		chartPath  = flag.String("chart", "corvusbench.png", "output latency chart path")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		storagelog.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "corvusbench: load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	dataDir, err := os.MkdirTemp("", "corvusbench-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dataDir)

	f, err := os.Create(*csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench:", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "Operation", "LatencyNs", "AllocMB"})

	fmt.Printf("running corvus b+tree suite (n=%d, pool=%d, replacer=%s)\n", *n, cfg.PoolSize, cfg.ReplacerPolicy)
	if err := runCorvusSuite(w, cfg, dataDir, *n); err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench:", err)
		os.Exit(1)
	}

	if *compare {
		fmt.Println("running pebble comparison suite")
		if err := runPebbleSuite(w, dataDir, *n); err != nil {
			fmt.Fprintln(os.Stderr, "corvusbench:", err)
			os.Exit(1)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench: writing csv:", err)
		os.Exit(1)
	}

	results, err := readBack(*csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench: re-reading csv:", err)
		os.Exit(1)
	}
	if err := renderChart(*chartPath, results); err != nil {
		fmt.Fprintln(os.Stderr, "corvusbench: rendering chart:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\n", *csvPath, *chartPath)
}
