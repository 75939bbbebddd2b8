// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitarray

import (
	"math/bits"
)

const (
	// WordSize is the number of bits in a word.
	WordSize = 64
	// LogWordSize is log2(WordSize).
	LogWordSize = 6
	// Mask is a word with every bit live.
	Mask = ^uint64(0)

	modMask = WordSize - 1
)

// Words is the read-only word view shared by BitArray,
// ConcurrentBitArray and anything else that stores bits in the same
// layout. Word(i) holds bits [i*WordSize, (i+1)*WordSize); bits at or
// beyond Size() are zero.
type Words interface {
	Size() int
	WordCount() int
	Word(wordIndex int) uint64
}

// A WordSource supplies the words used to randomize an array. Both
// random engines implement it.
type WordSource interface {
	Uint64() uint64
}

// WordIndex returns the index of the word holding bit i.
func WordIndex(i int) int {
	// Unsigned division by a power-of-2 constant compiles to a right-shift,
	// while signed does not due to negative nastiness.
	return int(uint(i) >> LogWordSize)
}

// BitOffset returns the offset of bit i within its word.
func BitOffset(i int) int {
	return int(uint(i) & modMask)
}

// WordStart returns the index of the first bit of word wordIndex.
func WordStart(wordIndex int) int {
	return wordIndex << LogWordSize
}

// BitMask returns the mask selecting bit i within its word.
func BitMask(i int) uint64 {
	return 1 << (uint(i) & modMask)
}

// WordCount returns the number of words needed to hold size bits.
func WordCount(size int) int {
	return int((uint(size) + modMask) >> LogWordSize)
}

// StartMask selects the bits of a word at or above the offset of from.
func StartMask(from int) uint64 {
	return Mask << (uint(from) & modMask)
}

// EndMask selects the bits of a word below the offset of to, treating
// a word-aligned to as the end of the previous word.
func EndMask(to int) uint64 {
	return Mask >> (uint(-to) & modMask)
}

// spanWords calls fn for each word overlapping [from, to), with the
// mask selecting the bits of the range within that word. The range
// must be nonempty.
func spanWords(from, to int, fn func(wordIndex int, mask uint64)) {
	start, end := WordIndex(from), WordIndex(to-1)
	if start == end {
		fn(start, StartMask(from)&EndMask(to))
		return
	}
	fn(start, StartMask(from))
	for i := start + 1; i < end; i++ {
		fn(i, Mask)
	}
	fn(end, EndMask(to))
}

// Scanner iterates over the live bits of a Words view in increasing
// order. Unlike the biterators it neither splits nor tracks density;
// it is the cheapest way to visit every live bit from one goroutine.
type Scanner struct {
	// words is the scanned array.
	words Words
	// wordIndex is the index of the word bitWord was loaded from.
	wordIndex int
	// bitWord is words.Word(wordIndex), with already-iterated-over bits
	// cleared.
	bitWord uint64
}

// NewScanner returns a Scanner for w, along with the position of the
// first live bit, or -1 if there is none. (This interface has been
// chosen to make for loops with properly-scoped variables easy to
// write.)
//
//	for s, i := bitarray.NewScanner(b); i != -1; i = s.Next() {
//		...
//	}
func NewScanner(w Words) (Scanner, int) {
	s := Scanner{words: w, wordIndex: -1}
	i := s.Next()
	return s, i
}

// Next returns the position of the next live bit, or -1 if there aren't any.
func (s *Scanner) Next() int {
	bitWord := s.bitWord
	for bitWord == 0 {
		s.wordIndex++
		if s.wordIndex >= s.words.WordCount() {
			s.bitWord = 0
			return -1
		}
		bitWord = s.words.Word(s.wordIndex)
	}
	s.bitWord = bitWord & (bitWord - 1)
	return WordStart(s.wordIndex) + bits.TrailingZeros64(bitWord)
}
