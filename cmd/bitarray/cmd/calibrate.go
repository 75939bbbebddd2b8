// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/dustin/go-humanize"
	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/random"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCalibrateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Compare density engines' observed densities with their targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := calibrate(cfg)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Target", "Resolved", "Observed", "Depth", "Error", "Within tolerance"})
			failed := 0
			for _, r := range rows {
				ok := "yes"
				if !r.ok(cfg.Tolerance) {
					ok = "NO"
					failed++
				}
				t.AppendRow(table.Row{r.target, r.resolved, percent(r.observed), r.depth, percent(r.observed - r.target), ok})
			}
			t.AppendFooter(table.Row{"", "", "", "", "bits/density", humanize.Comma(int64(cfg.Draws) * bitarray.WordSize)})
			t.Render()
			if failed > 0 {
				return errors.Errorf("%d of %d densities outside tolerance %v", failed, len(rows), cfg.Tolerance)
			}
			return nil
		},
	}
}

type calibration struct {
	target, resolved, observed float64
	depth                      int
}

func (c calibration) ok(tolerance float64) bool {
	return math.Abs(c.observed-c.target) <= tolerance
}

// calibrate draws cfg.Draws words from a density engine per target
// density and measures the fraction of live bits.
func calibrate(cfg *Config) ([]calibration, error) {
	var rows []calibration
	for i, d := range cfg.Densities {
		e, err := random.NewDensityTolerance(d, cfg.Tolerance, cfg.Seed+uint64(i))
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("density %v", d))
		}
		live := 0
		for k := 0; k < cfg.Draws; k++ {
			live += bits.OnesCount64(e.Uint64())
		}
		rows = append(rows, calibration{
			target:   d,
			resolved: e.Density(),
			observed: float64(live) / float64(cfg.Draws*bitarray.WordSize),
			depth:    e.Depth(),
		})
	}
	return rows, nil
}
