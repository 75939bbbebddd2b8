// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitarray

import (
	"sync/atomic"
)

// ConcurrentBitArray is a BitArray whose word mutations are atomic, so
// that it may be mutated from many goroutines without external
// locking. Every word update is a compare-and-swap retry loop and is
// linearizable with respect to other updates of the same word.
//
// Operations spanning several words (ranges, And/Or/Xor, Population,
// randomization) are performed one word at a time and are not atomic
// as a whole: a concurrent reader may observe them partially applied.
// Callers that need multi-word atomicity must coordinate externally.
type ConcurrentBitArray struct {
	BitArray
}

// NewConcurrent returns a ConcurrentBitArray of size bits, all dead.
func NewConcurrent(size int) (*ConcurrentBitArray, error) {
	b, err := New(size)
	if err != nil {
		return nil, err
	}
	b.concurrent = true
	return &ConcurrentBitArray{*b}, nil
}

// NewConcurrentFrom returns a ConcurrentBitArray holding a deep copy
// of src.
func NewConcurrentFrom(src Words) *ConcurrentBitArray {
	b := NewFrom(src)
	b.concurrent = true
	return &ConcurrentBitArray{*b}
}

// wordOp is a word update applied by BitArray.modify.
type wordOp uint8

const (
	opAnd wordOp = iota
	opOr
	opXor
	// opSegment replaces the bits selected by mask with those of the
	// operand.
	opSegment
)

func (op wordOp) apply(word, operand, mask uint64) uint64 {
	switch op {
	case opAnd:
		return word & operand
	case opOr:
		return word | operand
	case opXor:
		return word ^ operand
	default:
		return word&^mask | operand&mask
	}
}

// casWord applies op to *addr with a compare-and-swap retry loop and
// returns the value it replaced. The loop has no iteration cap: it
// retries only while another goroutine wins the race for the same
// word.
func casWord(addr *uint64, op wordOp, operand, mask uint64) uint64 {
	for {
		expected := atomic.LoadUint64(addr)
		word := op.apply(expected, operand, mask)
		if word == expected || atomic.CompareAndSwapUint64(addr, expected, word) {
			return expected
		}
	}
}
