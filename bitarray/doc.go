// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bitarray provides fixed-size bit arrays packed into 64-bit
// words. It is similar to github.com/willf/bitset, but with the size
// fixed at construction, word-level primitives exposed, and a
// ConcurrentBitArray variant whose word mutations are lock-free
// compare-and-swap loops.
//
// All scanning and bulk operations work a word at a time (population
// counts, trailing and leading zero counts) and only touch individual
// bits at range boundaries. Bits beyond Size() in the last word are
// always zero.
//
// Index and word accessors panic with an *errors.Error of kind
// errors.OutOfRange when given an index outside the array, in the
// manner of slice indexing. Constructors and binary operations return
// errors of kind errors.Invalid and errors.SizeMismatch.
package bitarray
