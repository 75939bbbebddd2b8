// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package traverse

import (
	"runtime"
	"sync/atomic"

	"github.com/grailbio/bitarray/biterator"
	"github.com/grailbio/bitarray/log"
	"golang.org/x/sync/errgroup"
)

// Split splits b into fragments and invokes fn on each of them
// concurrently, returning the first error. b is split recursively: each
// successful TrySplit hands half of the remaining parallelism budget to
// the lower fragment and keeps the rest, until the budget or the
// biterator runs out. The budget is the traverser's Limit, or
// GOMAXPROCS if Limit is zero.
//
// Every element of b is produced by exactly one fragment. Panics in fn
// propagate to the caller.
func (t T) Split(b biterator.Biterator, fn func(biterator.Biterator) error) error {
	budget := t.Limit
	if budget == 0 {
		budget = runtime.GOMAXPROCS(0)
	}
	frags := fork(b, budget, nil)
	log.Debug.Printf("traverse: split [%d, %d) into %d fragments", frags[0].Position(), b.End(), len(frags))
	if t.Reporter != nil {
		t.Reporter.Init(len(frags))
		defer t.Reporter.Complete()
	}
	var g errgroup.Group
	for i := range frags {
		g.Go(func() error {
			return t.invoke(func(i int) error { return fn(frags[i]) }, i)
		})
	}
	return repanic(g.Wait())
}

// fork appends the fragments of b, in range order, to frags.
func fork(b biterator.Biterator, budget int, frags []biterator.Biterator) []biterator.Biterator {
	for budget > 1 {
		lo := b.TrySplit()
		if lo == nil {
			break
		}
		frags = fork(lo, (budget+1)/2, frags)
		budget /= 2
	}
	return append(frags, b)
}

// Count returns the number of elements b produces, counted in
// parallel fragments.
func (t T) Count(b biterator.Biterator) (int64, error) {
	var n int64
	err := t.Split(b, func(f biterator.Biterator) error {
		var k int64
		f.ForEachRemaining(func(int) { k++ })
		atomic.AddInt64(&n, k)
		return nil
	})
	return n, err
}

// Split is a shorthand for Parallel.Split.
func Split(b biterator.Biterator, fn func(biterator.Biterator) error) error {
	return Parallel.Split(b, fn)
}

// Count is a shorthand for Parallel.Count.
func Count(b biterator.Biterator) (int64, error) {
	return Parallel.Count(b)
}
