// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package traverse runs work over index ranges and biterators
// concurrently, with bounded parallelism, first-error semantics and
// panic propagation.
package traverse

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grailbio/bitarray/errors"
)

const cachelineSize = 64

// A T is a traverser: it provides facilities for concurrently
// invoking functions that traverse collections of data.
type T struct {
	// Limit is the traverser's concurrency limit: there will be no more
	// than Limit concurrent invocations per traversal. A limit value of
	// zero (the default value) denotes no limit for Each and Range, and
	// GOMAXPROCS fragments for Split.
	Limit int
	// Reporter receives status reports for each traversal.
	Reporter Reporter
}

// Limit returns a traverser with limit n.
func Limit(n int) T {
	if n <= 0 {
		panic(errors.E(errors.Invalid, fmt.Sprintf("traverse.Limit: invalid limit: %d", n)))
	}
	return T{Limit: n}
}

// Parallel is the default traverser for CPU-bound work. It limits the
// number of concurrent invocations to a small multiple of the
// runtime's available processors.
var Parallel = T{Limit: 2 * runtime.GOMAXPROCS(0)}

// Each invokes fn(i) for 0 <= i < n, managing concurrency and error
// propagation. Each returns when all invocations have completed, or
// after the first invocation fails, in which case the first invocation
// error is returned. Each also propagates panics from underlying
// invocations to the caller.
func (t T) Each(n int, fn func(i int) error) error {
	if t.Reporter != nil {
		t.Reporter.Init(n)
		defer t.Reporter.Complete()
	}
	var err error
	if t.Limit == 0 || t.Limit >= n {
		err = t.each(n, fn)
	} else {
		err = t.eachLimit(n, fn)
	}
	return repanic(err)
}

func (t T) each(n int, fn func(i int) error) error {
	var (
		errs errors.Once
		wg   sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs.Set(t.invoke(fn, i))
			wg.Done()
		}(i)
	}
	wg.Wait()
	return errs.Err()
}

func (t T) eachLimit(n int, fn func(i int) error) error {
	var (
		errs errors.Once
		wg   sync.WaitGroup
		next = make([]struct {
			N int64
			_ [cachelineSize - 8]byte // cache padding
		}, t.Limit)
		size = (n + t.Limit - 1) / t.Limit
	)
	wg.Add(t.Limit)
	for i := 0; i < t.Limit; i++ {
		go func(w int) {
			orig := w
			for errs.Err() == nil {
				// Each worker traverses contiguous segments, so that
				// neighboring indices, and the words behind them, stay on
				// one goroutine.
				idx := int(atomic.AddInt64(&next[w].N, 1) - 1)
				which := w*size + idx
				if idx >= size || which >= n {
					w = (w + 1) % t.Limit
					if w == orig {
						break
					}
					continue
				}
				errs.Set(t.invoke(fn, which))
			}
			wg.Done()
		}(i)
	}
	wg.Wait()
	return errs.Err()
}

// Range splits n into contiguous ranges, one per unit of concurrency,
// and invokes fn for each range. Range amortizes call costs when n is
// large and the work per item is small.
func (t T) Range(n int, fn func(start, end int) error) error {
	m := n
	if t.Limit > 0 && t.Limit < n {
		m = t.Limit
	}
	return t.Each(m, func(i int) error {
		var (
			size  = float64(n) / float64(m)
			start = int(float64(i) * size)
			end   = int(float64(i+1) * size)
		)
		if start >= n {
			return nil
		}
		if i == m-1 {
			end = n
		}
		return fn(start, end)
	})
}

var defaultT = T{}

// Each performs concurrent traversal over n elements. It is a
// shorthand for (T{}).Each.
func Each(n int, fn func(i int) error) error {
	return defaultT.Each(n, fn)
}

// invoke runs fn(i) between the reporter's Begin and End events,
// converting a panic into a panicErr.
func (t T) invoke(fn func(i int) error, i int) error {
	if t.Reporter != nil {
		t.Reporter.Begin(i)
		defer t.Reporter.End(i)
	}
	return apply(fn, i)
}

func apply(fn func(i int) error, i int) (err error) {
	defer func() {
		if perr := recover(); perr != nil {
			err = panicErr{perr, debug.Stack()}
		}
	}()
	return fn(i)
}

// repanic rethrows a panic captured by apply in the calling goroutine.
func repanic(err error) error {
	if err, ok := err.(panicErr); ok {
		panic(fmt.Sprintf("traverse child: %v\n%s", err.v, string(err.stack)))
	}
	return err
}

type panicErr struct {
	v     interface{}
	stack []byte
}

func (p panicErr) Error() string { return fmt.Sprint(p.v) }
