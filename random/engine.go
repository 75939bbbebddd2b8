// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package random provides fast, deterministic pseudo-random engines for
// filling bit arrays. Engine is an xorshift64* generator; DensityEngine
// wraps one to produce words whose bits are live at a chosen rate.
//
// Engines are not cryptographically secure and are not safe for
// concurrent use. Parallel workers should each own an engine, seeded
// from a shared engine's Uint64 when reproducibility matters.
package random

import (
	"fmt"
	"math/bits"

	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/errors"
)

// Magic is the multiplier folded into every derived output. Raw
// outputs are the xorshift state itself.
const Magic = 0x2545F4914F6CDD1D

// An Engine is an xorshift64* pseudo-random generator with a period of
// 2^64-1. Its state is never zero.
type Engine struct {
	state uint64
}

// New returns an engine seeded with seed. Engines constructed with the
// same seed produce the same sequence for the same calls.
func New(seed uint64) *Engine {
	e := new(Engine)
	e.SetSeed(seed)
	return e
}

// NewFromEntropy returns an engine seeded by GenerateSeed(src).
func NewFromEntropy(src EntropySource) *Engine {
	return New(GenerateSeed(src))
}

// NewSeeded returns an engine seeded from the operating system's
// entropy source.
func NewSeeded() *Engine {
	return NewFromEntropy(SystemEntropy{})
}

// SetSeed resets the engine's state from seed. Nearby seeds produce
// unrelated sequences.
func (e *Engine) SetSeed(seed uint64) {
	e.state = mix(seed)
	if e.state == 0 {
		e.state = Magic
	}
}

// Seed implements math/rand.Source.
func (e *Engine) Seed(seed int64) { e.SetSeed(uint64(seed)) }

// NextRawUint64 advances the engine and returns its new state.
func (e *Engine) NextRawUint64() uint64 {
	x := e.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	e.state = x
	return x
}

// NextRawUint32 returns the upper half of NextRawUint64.
func (e *Engine) NextRawUint32() uint32 {
	return uint32(e.NextRawUint64() >> 32)
}

// Uint64 returns a pseudo-random 64-bit word. It implements
// bitarray.WordSource and math/rand.Source64.
func (e *Engine) Uint64() uint64 {
	return e.NextRawUint64() * Magic
}

// Uint32 returns a pseudo-random 32-bit word.
func (e *Engine) Uint32() uint32 {
	return uint32(e.Uint64() >> 32)
}

// Int64 returns a pseudo-random int64, possibly negative.
func (e *Engine) Int64() int64 { return int64(e.Uint64()) }

// Int32 returns a pseudo-random int32, possibly negative.
func (e *Engine) Int32() int32 { return int32(e.Uint32()) }

// Int63 returns a non-negative pseudo-random int64. It implements
// math/rand.Source.
func (e *Engine) Int63() int64 { return int64(e.Uint64() >> 1) }

// Int31 returns a non-negative pseudo-random int32.
func (e *Engine) Int31() int32 { return int32(e.Uint32() >> 1) }

// NextPositiveInt64 is Int63.
func (e *Engine) NextPositiveInt64() int64 { return e.Int63() }

// NextPositiveInt returns a non-negative pseudo-random int that fits
// in 31 bits on every platform.
func (e *Engine) NextPositiveInt() int { return int(e.Int31()) }

// Intn returns a uniform int in [0, bound). It panics if bound <= 0.
func (e *Engine) Intn(bound int) int {
	if bound <= 0 {
		panic(errors.E(errors.Invalid, fmt.Sprintf("random: bound %d must be positive", bound)))
	}
	return int(e.uint64n(uint64(bound)))
}

// Int63n returns a uniform int64 in [0, bound). It panics if bound <= 0.
func (e *Engine) Int63n(bound int64) int64 {
	if bound <= 0 {
		panic(errors.E(errors.Invalid, fmt.Sprintf("random: bound %d must be positive", bound)))
	}
	return int64(e.uint64n(uint64(bound)))
}

// uint64n is Lemire's multiply-shift reduction with rejection of the
// biased low products.
func (e *Engine) uint64n(n uint64) uint64 {
	hi, lo := bits.Mul64(e.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(e.Uint64(), n)
		}
	}
	return hi
}

// Float64 returns a uniform float64 in [0, 1).
func (e *Engine) Float64() float64 {
	return float64(e.Uint64()>>11) * 0x1p-53
}

// Float32 returns a uniform float32 in [0, 1).
func (e *Engine) Float32() float32 {
	return float32(e.Uint64()>>40) * 0x1p-24
}

// Bool returns one pseudo-random bit.
func (e *Engine) Bool() bool {
	return e.Uint64()>>63 != 0
}

// NextBitArray returns a new BitArray of size n filled from e.
func (e *Engine) NextBitArray(n int) (*bitarray.BitArray, error) {
	b, err := bitarray.New(n)
	if err != nil {
		return nil, err
	}
	b.Randomize(e)
	return b, nil
}

// NextConcurrentBitArray returns a new ConcurrentBitArray of size n
// filled from e.
func (e *Engine) NextConcurrentBitArray(n int) (*bitarray.ConcurrentBitArray, error) {
	b, err := bitarray.NewConcurrent(n)
	if err != nil {
		return nil, err
	}
	b.Randomize(e)
	return b, nil
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += 0x9E3779B97F4A7C15
	z = (z ^ z>>30) * 0xBF58476D1CE4E5B9
	z = (z ^ z>>27) * 0x94D049BB133111EB
	return z ^ z>>31
}
