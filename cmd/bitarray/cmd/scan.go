// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/biterator"
	"github.com/grailbio/bitarray/log"
	"github.com/grailbio/bitarray/random"
	"github.com/grailbio/bitarray/traverse"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newScanCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Fill an array to a density, then count its live bits serially and in parallel",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := scan(cfg)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Scan", "Live bits", "Checksum", "Fragments", "Time"})
			t.AppendRow(table.Row{"serial", humanize.Comma(res.serial.count), res.serial.checksum, 1, res.serial.elapsed})
			t.AppendRow(table.Row{"parallel", humanize.Comma(res.parallel.count), res.parallel.checksum, res.fragments, res.parallel.elapsed})
			t.AppendFooter(table.Row{"density", percent(float64(res.serial.count) / float64(cfg.Size)), "", "", humanize.Comma(int64(cfg.Size)) + " bits"})
			t.Render()
			if res.serial.count != res.parallel.count || res.serial.checksum != res.parallel.checksum {
				return errors.Errorf("parallel scan found %d live bits (checksum %x), serial scan %d (checksum %x)",
					res.parallel.count, res.parallel.checksum, res.serial.count, res.serial.checksum)
			}
			return nil
		},
	}
}

type tally struct {
	count    int64
	checksum uint64
	elapsed  time.Duration
}

type scanResult struct {
	serial, parallel tally
	fragments        int64
}

// checksum hashes a live index. Sums of hashes do not depend on the
// order in which fragments finish.
func checksum(i int) uint64 {
	return (uint64(i) + 1) * random.Magic
}

// scan fills a cfg.Size array from a density engine and counts its
// live bits with a Scanner and with traverse.Split over a Live
// biterator.
func scan(cfg *Config) (scanResult, error) {
	var res scanResult
	e, err := random.NewDensityTolerance(cfg.Density, cfg.Tolerance, cfg.Seed)
	if err != nil {
		return res, errors.Wrap(err, "creating density engine")
	}
	b, err := bitarray.New(cfg.Size)
	if err != nil {
		return res, errors.Wrap(err, "allocating bit array")
	}
	b.Randomize(e)
	log.Debug.Printf("scan: filled %s bits at density %v (depth %d)", humanize.Comma(int64(cfg.Size)), e.Density(), e.Depth())

	start := time.Now()
	for s, i := bitarray.NewScanner(b); i != -1; i = s.Next() {
		res.serial.count++
		res.serial.checksum += checksum(i)
	}
	res.serial.elapsed = time.Since(start)

	live, err := biterator.NewLive(b, 0, b.Size())
	if err != nil {
		return res, err
	}
	tr := traverse.T{Limit: cfg.Parallelism, Reporter: traverse.NewLogReporter("scan", log.Debug)}
	start = time.Now()
	err = tr.Split(live, func(f biterator.Biterator) error {
		var n int64
		var sum uint64
		f.ForEachRemaining(func(i int) {
			n++
			sum += checksum(i)
		})
		atomic.AddInt64(&res.parallel.count, n)
		atomic.AddUint64(&res.parallel.checksum, sum)
		atomic.AddInt64(&res.fragments, 1)
		return nil
	})
	res.parallel.elapsed = time.Since(start)
	return res, err
}
