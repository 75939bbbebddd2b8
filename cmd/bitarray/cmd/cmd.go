// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cmd implements the bitarray command line.
package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/grailbio/bitarray/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"
)

// Run executes the command line args, writing results to stdout and
// logs to stderr.
func Run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOutput(stdout)
	return root.Execute()
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	cfg := NewConfig()
	root := &cobra.Command{
		Use:   "bitarray",
		Short: "Exercise word-packed bit arrays, splitting iterators and density random engines",
		Long: `
	bitarray drives the bitarray, biterator and random packages at scale.
	It calibrates density random engines against their targets, compares
	serial and parallel scans of large arrays, and checks that concurrent
	bit arrays lose no updates under contention.
	`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Init(); err != nil {
				return err
			}
			logger := logrus.New()
			logger.SetOutput(stderr)
			logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
			log.SetOutputter(log.NewLogrusOutputter(logger, cfg.Log))
			log.Debug.Printf("%s/%s, %d CPUs, %s", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), popcount())
			return nil
		},
	}
	cfg.MustViperize(root)
	root.AddCommand(newCalibrateCmd(cfg), newScanCmd(cfg), newContendCmd(cfg))
	return root
}

// popcount describes how the population counts behind scans are
// computed on this machine.
func popcount() string {
	switch {
	case cpu.X86.HasPOPCNT:
		return "hardware POPCNT"
	case runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMD:
		return "hardware VCNT"
	}
	return "software popcount"
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	t.SetStyle(table.StyleLight)
	return t
}

func percent(f float64) string {
	return fmt.Sprintf("%.4f%%", 100*f)
}
