package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// renderChart draws one grouped bar per operation, one bar per
// structure, in nanoseconds-per-op.
func renderChart(outPath string, results []BenchResult) error {
	byOp := make(map[string][]BenchResult)
	var ops []string
	seenOp := make(map[string]bool)
	for _, r := range results {
		if !seenOp[r.Operation] {
			seenOp[r.Operation] = true
			ops = append(ops, r.Operation)
		}
		byOp[r.Operation] = append(byOp[r.Operation], r)
	}

	p := plot.New()
	p.Title.Text = "corvusbench: latency per operation"
	p.Y.Label.Text = "ns/op"
	p.NominalX(ops...)

	structures := []string{"corvus-bplustree", "pebble-lsm"}
	width := vg.Points(15)
	offset := -width

	for _, structure := range structures {
		values := make(plotter.Values, len(ops))
		any := false
		for i, op := range ops {
			for _, r := range byOp[op] {
				if r.Structure == structure {
					values[i] = float64(r.LatencyNs)
					any = true
				}
			}
		}
		if !any {
			continue
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("corvusbench: bar chart for %s: %w", structure, err)
		}
		bars.Offset = offset
		p.Add(bars)
		p.Legend.Add(structure, bars)
		offset += width
	}

	return p.Save(10*vg.Inch, 6*vg.Inch, outPath)
}
