// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"math/bits"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/log"
	"github.com/grailbio/bitarray/must"
	"github.com/grailbio/bitarray/traverse"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newContendCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "contend",
		Short: "Toggle the same words of a concurrent array from many goroutines and check for lost updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := contend(cfg)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Workers", "Rounds", "Words", "Updates", "Lost", "Time"})
			t.AppendRow(table.Row{cfg.Workers, cfg.Rounds, res.words, humanize.Comma(res.updates), res.lost, res.elapsed})
			t.Render()
			if res.lost > 0 {
				return errors.Errorf("%d of %d words lost updates", res.lost, res.words)
			}
			return nil
		},
	}
}

type contention struct {
	words   int
	updates int64
	lost    int
	elapsed time.Duration
}

// contend has every worker XOR its own bit into every word of a
// concurrent array, cfg.Rounds times. With no lost updates each word
// ends up holding exactly the bits of the workers that toggled it an
// odd number of times. A single-bit Add/Remove pass by each worker
// over its own bit follows as a second check.
func contend(cfg *Config) (contention, error) {
	b, err := bitarray.NewConcurrent(cfg.Size)
	if err != nil {
		return contention{}, errors.Wrap(err, "allocating concurrent bit array")
	}
	res := contention{words: b.WordCount()}
	var want uint64
	for w := 0; w < cfg.Workers; w++ {
		if cfg.Rounds%2 == 1 {
			want ^= 1 << uint(w%bitarray.WordSize)
		}
	}
	tr := traverse.T{Reporter: traverse.NewLogReporter("contend", log.Debug)}
	start := time.Now()
	err = tr.Each(cfg.Workers, func(w int) error {
		mask := uint64(1) << uint(w%bitarray.WordSize)
		for r := 0; r < cfg.Rounds; r++ {
			for i := 0; i < b.WordCount(); i++ {
				b.XorWord(i, mask)
			}
		}
		return nil
	})
	res.elapsed = time.Since(start)
	if err != nil {
		return res, err
	}
	res.updates = int64(cfg.Workers) * int64(cfg.Rounds) * int64(b.WordCount())
	population := 0
	for i := 0; i < b.WordCount(); i++ {
		expect := want & wordMask(b, i)
		if got := b.Word(i); got != expect {
			res.lost++
			log.Printf("contend: word %d is %016x, want %016x", i, got, expect)
		}
		population += bits.OnesCount64(expect)
	}
	if res.lost > 0 {
		return res, nil
	}
	must.Truef(b.Population() == population, "contend: population %d, want %d", b.Population(), population)

	// Workers now own disjoint bits; each Remove of a live bit and each
	// Add of a dead one must report the transition exactly once.
	if cfg.Workers <= bitarray.WordSize {
		err = tr.Each(cfg.Workers, func(w int) error {
			for i := w; i < b.Size(); i += bitarray.WordSize {
				was := b.Get(i)
				if was {
					must.True(b.Remove(i), "contend: lost Remove of bit ", i)
				} else {
					must.True(b.Add(i), "contend: lost Add of bit ", i)
				}
			}
			return nil
		})
	}
	return res, err
}

// wordMask selects the addressable bits of word i of b.
func wordMask(b *bitarray.ConcurrentBitArray, i int) uint64 {
	if i == b.WordCount()-1 {
		return bitarray.EndMask(b.Size())
	}
	return bitarray.Mask
}
