// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package biterator implements splitting iterators over bit indices.
// A Biterator produces an ascending sequence of ints and may be split
// into two Biterators that together produce the same sequence, which
// lets a traversal fan the work out over goroutines (see
// traverse.Split).
//
// Bit-indexed biterators split on word boundaries, so the indices
// produced by two siblings never share a word. Fragments may therefore
// mutate a plain bitarray.BitArray at their own indices in parallel.
//
// A Biterator is not safe for concurrent use; each fragment must be
// owned by one goroutine at a time.
package biterator

import (
	"iter"

	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/errors"
)

// Threshold is the estimated size at or below which TrySplit refuses
// to split.
const Threshold = 4 * bitarray.WordSize

// Characteristics describe the sequence a Biterator produces.
type Characteristics uint

const (
	// Ordered sequences are produced in ascending order.
	Ordered Characteristics = 1 << iota
	// Distinct sequences never repeat an element.
	Distinct
	// Sized biterators report an exact EstimateSize.
	Sized
	// Subsized biterators split into Sized biterators.
	Subsized
	// Immutable biterators read no mutable state of their own source.
	Immutable
	// NonNull sequences contain no sentinel values.
	NonNull
)

// Has tells whether c includes every characteristic in o.
func (c Characteristics) Has(o Characteristics) bool { return c&o == o }

// A Biterator produces the ints of a half-open range [Position(), End())
// that satisfy some property.
type Biterator interface {
	// TryAdvance calls action with the next element and returns true,
	// or returns false if the biterator is exhausted.
	TryAdvance(action func(int)) bool
	// ForEachRemaining calls action with every remaining element, in
	// order, and exhausts the biterator.
	ForEachRemaining(action func(int))
	// TrySplit returns a biterator over the lower part of the remaining
	// range and shrinks the receiver to the upper part, or returns nil
	// if the receiver is too small to split.
	TrySplit() Biterator
	// EstimateSize estimates the number of remaining elements.
	EstimateSize() int64
	// Characteristics returns the characteristics of the sequence.
	Characteristics() Characteristics
	// Position returns the lower bound of the remaining range.
	Position() int
	// End returns the exclusive upper bound of the range.
	End() int
}

// cursor is the remaining range [position, end) shared by every
// biterator.
type cursor struct {
	position, end int
}

func newCursor(position, end, size int) (cursor, error) {
	if position < 0 || position > end || end > size {
		return cursor{}, errors.Errorf(errors.OutOfRange, "biterator range [%d, %d) not within [0, %d)", position, end, size)
	}
	return cursor{position, end}, nil
}

func (c *cursor) Position() int { return c.position }

func (c *cursor) End() int { return c.end }

func (c *cursor) remaining() int { return c.end - c.position }

// middle returns the midpoint of the remaining range without overflow.
func (c *cursor) middle() int {
	return c.position + (c.end-c.position)/2
}

// splitIndex returns the midpoint aligned down to a word boundary, or
// -1 if that leaves the lower part empty.
func (c *cursor) splitIndex() int {
	i := bitarray.WordStart(bitarray.WordIndex(c.middle()))
	if i <= c.position {
		return -1
	}
	return i
}

// Seq returns an iterator over the remaining elements of b.
func Seq(b Biterator) iter.Seq[int] {
	return func(yield func(int) bool) {
		more, stop := true, false
		for more && !stop {
			more = b.TryAdvance(func(i int) { stop = !yield(i) })
		}
	}
}

// Collect drains b into a slice.
func Collect(b Biterator) []int {
	var out []int
	b.ForEachRemaining(func(i int) { out = append(out, i) })
	return out
}
