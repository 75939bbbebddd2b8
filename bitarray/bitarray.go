// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitarray

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/grailbio/bitarray/errors"
)

// BitArray is a fixed-size array of bits packed into 64-bit words.
// A BitArray is not safe for concurrent mutation; use
// ConcurrentBitArray for that.
type BitArray struct {
	// size is the number of addressable bits.
	size int
	// words holds the bits; len(words) == WordCount(size).
	words []uint64
	// concurrent makes every word access atomic. It is set only by
	// the ConcurrentBitArray constructors.
	concurrent bool
}

// New returns a BitArray of size bits, all dead.
func New(size int) (*BitArray, error) {
	if size <= 0 {
		return nil, errors.Errorf(errors.Invalid, "bitarray size %d must be positive", size)
	}
	return &BitArray{size: size, words: make([]uint64, WordCount(size))}, nil
}

// NewFrom returns a deep copy of src.
func NewFrom(src Words) *BitArray {
	b := &BitArray{size: src.Size(), words: make([]uint64, src.WordCount())}
	for i := range b.words {
		b.words[i] = src.Word(i) & b.wordMask(i)
	}
	return b
}

// Size returns the number of bits in the array.
func (b *BitArray) Size() int { return b.size }

// WordCount returns the number of words backing the array.
func (b *BitArray) WordCount() int { return len(b.words) }

// Words returns a snapshot copy of the backing words.
func (b *BitArray) Words() []uint64 {
	words := make([]uint64, len(b.words))
	for i := range words {
		words[i] = b.load(i)
	}
	return words
}

// Copy overwrites b with the contents of src, which must have the
// same size.
func (b *BitArray) Copy(src Words) error {
	if err := b.sameSize(src); err != nil {
		return err
	}
	for i := range b.words {
		b.store(i, src.Word(i)&b.wordMask(i))
	}
	return nil
}

// CompareSize orders b and o by size: it returns -1, 0 or +1 when b
// is smaller than, the same size as, or larger than o.
func (b *BitArray) CompareSize(o Words) int {
	switch n := o.Size(); {
	case b.size < n:
		return -1
	case b.size > n:
		return 1
	}
	return 0
}

// Equal tells whether o has the same size and bits as b.
func (b *BitArray) Equal(o Words) bool {
	if b.CompareSize(o) != 0 || len(b.words) != o.WordCount() {
		return false
	}
	for i := range b.words {
		if b.load(i) != o.Word(i) {
			return false
		}
	}
	return true
}

// Get tells whether bit i is live.
func (b *BitArray) Get(i int) bool {
	b.checkIndex(i)
	return b.load(WordIndex(i))&BitMask(i) != 0
}

// Set makes bit i live.
func (b *BitArray) Set(i int) {
	b.checkIndex(i)
	b.modify(opOr, WordIndex(i), BitMask(i), 0)
}

// Clear makes bit i dead.
func (b *BitArray) Clear(i int) {
	b.checkIndex(i)
	b.modify(opAnd, WordIndex(i), ^BitMask(i), 0)
}

// Toggle flips bit i.
func (b *BitArray) Toggle(i int) {
	b.checkIndex(i)
	b.modify(opXor, WordIndex(i), BitMask(i), 0)
}

// Add makes bit i live and reports whether it was dead before.
func (b *BitArray) Add(i int) bool {
	b.checkIndex(i)
	mask := BitMask(i)
	return b.modify(opOr, WordIndex(i), mask, 0)&mask == 0
}

// Remove makes bit i dead and reports whether it was live before.
func (b *BitArray) Remove(i int) bool {
	b.checkIndex(i)
	mask := BitMask(i)
	return b.modify(opAnd, WordIndex(i), ^mask, 0)&mask != 0
}

// GetRange returns the number of live bits in [from, to).
func (b *BitArray) GetRange(from, to int) int {
	b.checkRange(from, to)
	if from == to {
		return 0
	}
	n := 0
	spanWords(from, to, func(i int, mask uint64) {
		n += bits.OnesCount64(b.load(i) & mask)
	})
	return n
}

// SetRange makes the bits in [from, to) live.
func (b *BitArray) SetRange(from, to int) {
	b.checkRange(from, to)
	if from == to {
		return
	}
	spanWords(from, to, func(i int, mask uint64) {
		b.modify(opOr, i, mask, 0)
	})
}

// ClearRange makes the bits in [from, to) dead.
func (b *BitArray) ClearRange(from, to int) {
	b.checkRange(from, to)
	if from == to {
		return
	}
	spanWords(from, to, func(i int, mask uint64) {
		b.modify(opAnd, i, ^mask, 0)
	})
}

// ToggleRange flips the bits in [from, to).
func (b *BitArray) ToggleRange(from, to int) {
	b.checkRange(from, to)
	if from == to {
		return
	}
	spanWords(from, to, func(i int, mask uint64) {
		b.modify(opXor, i, mask, 0)
	})
}

// Word returns word wordIndex.
func (b *BitArray) Word(wordIndex int) uint64 {
	b.checkWord(wordIndex)
	return b.load(wordIndex)
}

// SetWord replaces word wordIndex with word.
func (b *BitArray) SetWord(wordIndex int, word uint64) {
	b.checkWord(wordIndex)
	b.store(wordIndex, word&b.wordMask(wordIndex))
}

// AndWord replaces word wordIndex with its AND against mask.
func (b *BitArray) AndWord(wordIndex int, mask uint64) {
	b.checkWord(wordIndex)
	b.modify(opAnd, wordIndex, mask, 0)
}

// OrWord replaces word wordIndex with its OR against mask.
func (b *BitArray) OrWord(wordIndex int, mask uint64) {
	b.checkWord(wordIndex)
	b.modify(opOr, wordIndex, mask&b.wordMask(wordIndex), 0)
}

// XorWord replaces word wordIndex with its XOR against mask.
func (b *BitArray) XorWord(wordIndex int, mask uint64) {
	b.checkWord(wordIndex)
	b.modify(opXor, wordIndex, mask&b.wordMask(wordIndex), 0)
}

// ToggleWord flips every bit of word wordIndex.
func (b *BitArray) ToggleWord(wordIndex int) {
	b.checkWord(wordIndex)
	b.modify(opXor, wordIndex, b.wordMask(wordIndex), 0)
}

// FillWord makes every bit of word wordIndex live.
func (b *BitArray) FillWord(wordIndex int) {
	b.checkWord(wordIndex)
	b.store(wordIndex, b.wordMask(wordIndex))
}

// EmptyWord makes every bit of word wordIndex dead.
func (b *BitArray) EmptyWord(wordIndex int) {
	b.checkWord(wordIndex)
	b.store(wordIndex, 0)
}

// SetWordSegment replaces the bits of word wordIndex selected by mask
// with the corresponding bits of word.
func (b *BitArray) SetWordSegment(wordIndex int, word, mask uint64) {
	b.checkWord(wordIndex)
	b.modify(opSegment, wordIndex, word, mask&b.wordMask(wordIndex))
}

// Fill makes every bit live.
func (b *BitArray) Fill() {
	for i := range b.words {
		b.store(i, b.wordMask(i))
	}
}

// Empty makes every bit dead.
func (b *BitArray) Empty() {
	for i := range b.words {
		b.store(i, 0)
	}
}

// Not flips every bit.
func (b *BitArray) Not() {
	for i := range b.words {
		b.modify(opXor, i, b.wordMask(i), 0)
	}
}

// And replaces b with b AND o.
func (b *BitArray) And(o Words) error {
	if err := b.sameSize(o); err != nil {
		return err
	}
	for i := range b.words {
		b.modify(opAnd, i, o.Word(i), 0)
	}
	return nil
}

// Or replaces b with b OR o.
func (b *BitArray) Or(o Words) error {
	if err := b.sameSize(o); err != nil {
		return err
	}
	for i := range b.words {
		b.modify(opOr, i, o.Word(i)&b.wordMask(i), 0)
	}
	return nil
}

// Xor replaces b with b XOR o.
func (b *BitArray) Xor(o Words) error {
	if err := b.sameSize(o); err != nil {
		return err
	}
	for i := range b.words {
		b.modify(opXor, i, o.Word(i)&b.wordMask(i), 0)
	}
	return nil
}

// AndNot clears the bits of b that are live in o.
func (b *BitArray) AndNot(o Words) error {
	if err := b.sameSize(o); err != nil {
		return err
	}
	for i := range b.words {
		b.modify(opAnd, i, ^o.Word(i), 0)
	}
	return nil
}

// NotOf replaces b with the complement of o.
func (b *BitArray) NotOf(o Words) error {
	if err := b.sameSize(o); err != nil {
		return err
	}
	for i := range b.words {
		b.store(i, ^o.Word(i)&b.wordMask(i))
	}
	return nil
}

// Population returns the number of live bits.
func (b *BitArray) Population() int {
	n := 0
	for i := range b.words {
		n += bits.OnesCount64(b.load(i))
	}
	return n
}

// Density returns the fraction of live bits.
func (b *BitArray) Density() float64 {
	return float64(b.Population()) / float64(b.size)
}

// DensityRange returns the fraction of live bits in [from, to), or 0
// for an empty range.
func (b *BitArray) DensityRange(from, to int) float64 {
	n := b.GetRange(from, to)
	if from == to {
		return 0
	}
	return float64(n) / float64(to-from)
}

// Live tells whether every bit is live.
func (b *BitArray) Live() bool {
	for i := range b.words {
		if b.load(i) != b.wordMask(i) {
			return false
		}
	}
	return true
}

// Dead tells whether every bit is dead.
func (b *BitArray) Dead() bool {
	for i := range b.words {
		if b.load(i) != 0 {
			return false
		}
	}
	return true
}

// NextLive returns the index of the first live bit at or after i, or
// Size() if there is none.
func (b *BitArray) NextLive(i int) int {
	b.checkIndex(i)
	wordIndex := WordIndex(i)
	word := b.load(wordIndex) & StartMask(i)
	for word == 0 {
		if wordIndex++; wordIndex == len(b.words) {
			return b.size
		}
		word = b.load(wordIndex)
	}
	return WordStart(wordIndex) + bits.TrailingZeros64(word)
}

// NextDead returns the index of the first dead bit at or after i, or
// Size() if there is none.
func (b *BitArray) NextDead(i int) int {
	b.checkIndex(i)
	wordIndex := WordIndex(i)
	word := ^b.load(wordIndex) & StartMask(i)
	for word == 0 {
		if wordIndex++; wordIndex == len(b.words) {
			return b.size
		}
		word = ^b.load(wordIndex)
	}
	// The hanging bits of the last word read as dead.
	if next := WordStart(wordIndex) + bits.TrailingZeros64(word); next < b.size {
		return next
	}
	return b.size
}

// LastLive returns the index of the last live bit at or before i, or
// -1 if there is none.
func (b *BitArray) LastLive(i int) int {
	b.checkIndex(i)
	wordIndex := WordIndex(i)
	word := b.load(wordIndex) & (Mask >> (modMask - BitOffset(i)))
	for word == 0 {
		if wordIndex--; wordIndex < 0 {
			return -1
		}
		word = b.load(wordIndex)
	}
	return WordStart(wordIndex) + modMask - bits.LeadingZeros64(word)
}

// LastDead returns the index of the last dead bit at or before i, or
// -1 if there is none.
func (b *BitArray) LastDead(i int) int {
	b.checkIndex(i)
	wordIndex := WordIndex(i)
	word := ^b.load(wordIndex) & (Mask >> (modMask - BitOffset(i)))
	for word == 0 {
		if wordIndex--; wordIndex < 0 {
			return -1
		}
		word = ^b.load(wordIndex)
	}
	return WordStart(wordIndex) + modMask - bits.LeadingZeros64(word)
}

// Randomize overwrites every word with words drawn from src.
func (b *BitArray) Randomize(src WordSource) {
	for i := range b.words {
		b.store(i, src.Uint64()&b.wordMask(i))
	}
}

// RandomizeRange overwrites the bits in [from, to) with bits drawn
// from src, one word per word touched.
func (b *BitArray) RandomizeRange(src WordSource, from, to int) {
	b.checkRange(from, to)
	if from == to {
		return
	}
	spanWords(from, to, func(i int, mask uint64) {
		b.modify(opSegment, i, src.Uint64(), mask)
	})
}

// XorRandomize XORs every word with a word drawn from src, mixing
// entropy into the existing bits.
func (b *BitArray) XorRandomize(src WordSource) {
	for i := range b.words {
		b.modify(opXor, i, src.Uint64()&b.wordMask(i), 0)
	}
}

// XorRandomizeRange XORs the bits in [from, to) with bits drawn from
// src, one word per word touched.
func (b *BitArray) XorRandomizeRange(src WordSource, from, to int) {
	b.checkRange(from, to)
	if from == to {
		return
	}
	spanWords(from, to, func(i int, mask uint64) {
		b.modify(opXor, i, src.Uint64()&mask, 0)
	})
}

// wordMask selects the addressable bits of word i: all of them, except
// in a partially used last word.
func (b *BitArray) wordMask(i int) uint64 {
	if i == len(b.words)-1 {
		return EndMask(b.size)
	}
	return Mask
}

func (b *BitArray) load(i int) uint64 {
	if b.concurrent {
		return atomic.LoadUint64(&b.words[i])
	}
	return b.words[i]
}

func (b *BitArray) store(i int, word uint64) {
	if b.concurrent {
		atomic.StoreUint64(&b.words[i], word)
		return
	}
	b.words[i] = word
}

// modify applies op to word i and returns the word's previous value.
func (b *BitArray) modify(op wordOp, i int, operand, mask uint64) uint64 {
	if b.concurrent {
		return casWord(&b.words[i], op, operand, mask)
	}
	prev := b.words[i]
	b.words[i] = op.apply(prev, operand, mask)
	return prev
}

func (b *BitArray) sameSize(o Words) error {
	if b.CompareSize(o) != 0 {
		return errors.Errorf(errors.SizeMismatch, "bitarray sizes %d and %d differ", b.size, o.Size())
	}
	return nil
}

func (b *BitArray) checkIndex(i int) {
	if uint(i) >= uint(b.size) {
		panic(errors.E(errors.OutOfRange, fmt.Sprintf("bit %d of bitarray of size %d", i, b.size)))
	}
}

func (b *BitArray) checkWord(i int) {
	if uint(i) >= uint(len(b.words)) {
		panic(errors.E(errors.OutOfRange, fmt.Sprintf("word %d of bitarray with %d words", i, len(b.words))))
	}
}

func (b *BitArray) checkRange(from, to int) {
	if from < 0 || from > to || to > b.size {
		panic(errors.E(errors.OutOfRange, fmt.Sprintf("range [%d, %d) of bitarray of size %d", from, to, b.size)))
	}
}
