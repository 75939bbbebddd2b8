// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command bitarray calibrates density random engines, compares serial
// and parallel scans of large bit arrays, and stress-tests concurrent
// bit arrays under contention.
package main

import (
	"os"

	"github.com/grailbio/bitarray/cmd/bitarray/cmd"
	"github.com/grailbio/bitarray/log"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	if err := cmd.Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}
