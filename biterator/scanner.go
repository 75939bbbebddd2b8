// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package biterator

import (
	"math"
	"math/bits"

	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/errors"
)

// SampleWords is the number of words sampled to seed a density
// estimate.
const SampleWords = 8

const estimated = Ordered | Distinct | NonNull

// density estimates the fraction of produced bits in the unscanned
// part of a range. It starts from a prior, worth SampleWords words of
// observations, and folds in every word the scanner loads.
type density struct {
	prior float64
	// live and seen count produced and total bits of tallied words.
	live, seen int64
	// tallied is one past the highest word index folded in so far.
	tallied int
}

const priorWeight = SampleWords * bitarray.WordSize

func (d *density) estimate() float64 {
	return (d.prior*priorWeight + float64(d.live)) / float64(priorWeight+d.seen)
}

// updateDensity folds word wordIndex, restricted to mask, into the
// estimate unless it was already counted.
func (d *density) updateDensity(wordIndex int, word, mask uint64) {
	if wordIndex < d.tallied {
		return
	}
	d.tallied = wordIndex + 1
	d.live += int64(bits.OnesCount64(word & mask))
	d.seen += int64(bits.OnesCount64(mask))
}

// inherit returns a tracker for a sibling, starting from the current
// estimate.
func (d *density) inherit() density {
	return density{prior: d.estimate(), tallied: d.tallied}
}

// rangeMask selects the bits of word wordIndex within [from, to).
func rangeMask(wordIndex, from, to int) uint64 {
	mask := bitarray.Mask
	if wordIndex == bitarray.WordIndex(from) {
		mask &= bitarray.StartMask(from)
	}
	if wordIndex == bitarray.WordIndex(to-1) {
		mask &= bitarray.EndMask(to)
	}
	return mask
}

// sample returns the fraction of live bits in up to SampleWords words
// spread evenly over [from, to).
func sample(load func(int) uint64, from, to int) float64 {
	if from >= to {
		return 0
	}
	first, last := bitarray.WordIndex(from), bitarray.WordIndex(to-1)
	stride := 1
	if n := last - first + 1; n > SampleWords {
		stride = n / SampleWords
	}
	var live, total int
	for k, i := 0, first; k < SampleWords && i <= last; k, i = k+1, i+stride {
		mask := rangeMask(i, from, to)
		live += bits.OnesCount64(load(i) & mask)
		total += bits.OnesCount64(mask)
	}
	return float64(live) / float64(total)
}

// scanner produces the indices of the live bits of the words returned
// by load. Live, Dead and the function biterators differ only in load
// and in how the density prior is sampled.
type scanner struct {
	cursor
	density
	load func(wordIndex int) uint64
}

func (s *scanner) word(i int) uint64 {
	word := s.load(i)
	s.updateDensity(i, word, rangeMask(i, s.position, s.end))
	return word
}

// next returns the first produced index at or after the position, or
// end if there is none.
func (s *scanner) next() int {
	if s.position >= s.end {
		return s.end
	}
	i, last := bitarray.WordIndex(s.position), bitarray.WordIndex(s.end-1)
	word := s.word(i) & bitarray.StartMask(s.position)
	for word == 0 {
		if i == last {
			return s.end
		}
		i++
		word = s.word(i)
	}
	if n := bitarray.WordStart(i) + bits.TrailingZeros64(word); n < s.end {
		return n
	}
	return s.end
}

func (s *scanner) TryAdvance(action func(int)) bool {
	n := s.next()
	if n >= s.end {
		s.position = s.end
		return false
	}
	s.position = n + 1
	action(n)
	return true
}

func (s *scanner) ForEachRemaining(action func(int)) {
	for s.position < s.end {
		i := bitarray.WordIndex(s.position)
		word := s.word(i) & rangeMask(i, s.position, s.end)
		s.position = bitarray.WordStart(i + 1)
		if s.position > s.end {
			s.position = s.end
		}
		start := bitarray.WordStart(i)
		for ; word != 0; word &= word - 1 {
			action(start + bits.TrailingZeros64(word))
		}
	}
}

func (s *scanner) EstimateSize() int64 {
	return int64(math.Round(s.estimate() * float64(s.remaining())))
}

func (s *scanner) Characteristics() Characteristics { return estimated }

// ExactSize counts the remaining elements by scanning every word of
// the range. It does not advance the biterator.
func (s *scanner) ExactSize() int64 {
	if s.position >= s.end {
		return 0
	}
	var n int64
	for i, last := bitarray.WordIndex(s.position), bitarray.WordIndex(s.end-1); i <= last; i++ {
		n += int64(bits.OnesCount64(s.load(i) & rangeMask(i, s.position, s.end)))
	}
	return n
}

// split shrinks s to the upper half of its range and returns a scanner
// over the lower half, or nil.
func (s *scanner) split() *scanner {
	if s.EstimateSize() <= Threshold {
		return nil
	}
	mid := s.splitIndex()
	if mid < 0 {
		return nil
	}
	lo := &scanner{cursor{s.position, mid}, s.inherit(), s.load}
	s.position = mid
	s.density = s.inherit()
	return lo
}

func newScanner(w bitarray.Words, position, end int, load func(int) uint64) (*scanner, error) {
	c, err := newCursor(position, end, w.Size())
	if err != nil {
		return nil, err
	}
	return &scanner{cursor: c, load: load}, nil
}

// Live produces the indices of the live bits of a Words view.
type Live struct {
	*scanner
}

// NewLive returns a Live over bits [position, end) of w.
func NewLive(w bitarray.Words, position, end int) (*Live, error) {
	s, err := newScanner(w, position, end, w.Word)
	if err != nil {
		return nil, err
	}
	s.prior = sample(s.load, position, end)
	return &Live{s}, nil
}

func (l *Live) TrySplit() Biterator {
	if lo := l.split(); lo != nil {
		return &Live{lo}
	}
	return nil
}

// Dead produces the indices of the dead bits of a Words view.
type Dead struct {
	*scanner
}

// NewDead returns a Dead over bits [position, end) of w.
func NewDead(w bitarray.Words, position, end int) (*Dead, error) {
	s, err := newScanner(w, position, end, func(i int) uint64 { return ^w.Word(i) })
	if err != nil {
		return nil, err
	}
	s.prior = sample(s.load, position, end)
	return &Dead{s}, nil
}

func (d *Dead) TrySplit() Biterator {
	if lo := d.split(); lo != nil {
		return &Dead{lo}
	}
	return nil
}

// Function produces the indices of the live bits of a bitwise
// combination of two Words views of the same size. Combined words are
// computed as they are scanned and never stored.
type Function struct {
	*scanner
}

// NewAnd returns a Function over the live bits of a AND b.
func NewAnd(a, b bitarray.Words, position, end int) (*Function, error) {
	return newFunction(a, b, position, end,
		func(x, y uint64) uint64 { return x & y },
		func(p, q float64) float64 { return p * q })
}

// NewOr returns a Function over the live bits of a OR b.
func NewOr(a, b bitarray.Words, position, end int) (*Function, error) {
	return newFunction(a, b, position, end,
		func(x, y uint64) uint64 { return x | y },
		func(p, q float64) float64 { return p + q - p*q })
}

// NewXor returns a Function over the live bits of a XOR b.
func NewXor(a, b bitarray.Words, position, end int) (*Function, error) {
	return newFunction(a, b, position, end,
		func(x, y uint64) uint64 { return x ^ y },
		func(p, q float64) float64 { return p + q - 2*p*q })
}

// newFunction binds op to a and b. The density prior combines the
// operands' sampled densities with prior, assuming they are
// independent.
func newFunction(a, b bitarray.Words, position, end int, op func(x, y uint64) uint64, prior func(p, q float64) float64) (*Function, error) {
	if a.Size() != b.Size() {
		return nil, errors.Errorf(errors.SizeMismatch, "biterator operand sizes %d and %d differ", a.Size(), b.Size())
	}
	s, err := newScanner(a, position, end, func(i int) uint64 { return op(a.Word(i), b.Word(i)) })
	if err != nil {
		return nil, err
	}
	s.prior = prior(sample(a.Word, position, end), sample(b.Word, position, end))
	return &Function{s}, nil
}

func (f *Function) TrySplit() Biterator {
	if lo := f.split(); lo != nil {
		return &Function{lo}
	}
	return nil
}
