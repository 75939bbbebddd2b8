// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package biterator

import (
	"math"

	"github.com/grailbio/bitarray/bitarray"
)

const exact = Ordered | Distinct | Sized | Subsized | Immutable | NonNull

// Range produces every int in [position, end).
type Range struct {
	cursor
}

// NewRange returns a Range over [position, end).
func NewRange(position, end int) (*Range, error) {
	c, err := newCursor(position, end, math.MaxInt)
	if err != nil {
		return nil, err
	}
	return &Range{c}, nil
}

func (r *Range) TryAdvance(action func(int)) bool {
	if r.position >= r.end {
		return false
	}
	action(r.position)
	r.position++
	return true
}

func (r *Range) ForEachRemaining(action func(int)) {
	for ; r.position < r.end; r.position++ {
		action(r.position)
	}
}

func (r *Range) TrySplit() Biterator {
	if r.EstimateSize() <= Threshold {
		return nil
	}
	mid := r.splitIndex()
	if mid < 0 {
		return nil
	}
	lo := &Range{cursor{r.position, mid}}
	r.position = mid
	return lo
}

func (r *Range) EstimateSize() int64 { return int64(r.remaining()) }

func (r *Range) Characteristics() Characteristics { return exact }

// Array produces items[position:end], which must hold bit indices in
// ascending order.
type Array struct {
	cursor
	items []int
}

// NewArray returns an Array over items[position:end]. Splits never
// divide a word between siblings, so items that are unsorted, or
// crowded into a few words, split rarely or not at all: such an Array
// is traversed serially.
func NewArray(items []int, position, end int) (*Array, error) {
	c, err := newCursor(position, end, len(items))
	if err != nil {
		return nil, err
	}
	return &Array{c, items}, nil
}

func (a *Array) TryAdvance(action func(int)) bool {
	if a.position >= a.end {
		return false
	}
	action(a.items[a.position])
	a.position++
	return true
}

func (a *Array) ForEachRemaining(action func(int)) {
	for ; a.position < a.end; a.position++ {
		action(a.items[a.position])
	}
}

// TrySplit splits after the last item sharing a word with the middle
// item, so that siblings touch disjoint words. It refuses when every
// item from the middle on shares that word.
func (a *Array) TrySplit() Biterator {
	if a.EstimateSize() <= Threshold {
		return nil
	}
	mid := a.middle()
	w := bitarray.WordIndex(a.items[mid])
	for mid++; mid < a.end && bitarray.WordIndex(a.items[mid]) <= w; mid++ {
	}
	if mid >= a.end {
		return nil
	}
	lo := &Array{cursor{a.position, mid}, a.items}
	a.position = mid
	return lo
}

func (a *Array) EstimateSize() int64 { return int64(a.remaining()) }

func (a *Array) Characteristics() Characteristics { return exact }
