// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package random

import (
	"math"
	"math/bits"

	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/errors"
	"github.com/grailbio/bitarray/log"
)

// MaxDepth is the largest number of raw words combined into one
// DensityEngine word.
const MaxDepth = 63

// A DensityEngine produces words whose bits are each live with a fixed
// probability. A uniform word has density 1/2; ANDing it with a word of
// density d gives d/2, ORing gives (d+1)/2. Folding depth raw words
// together in the order given by the binary expansion of the target
// density therefore reaches any density of the form k/2^depth.
//
// Density words are produced by Uint64, Uint32, Bool, NextBitArray and
// NextConcurrentBitArray; the remaining Engine methods are inherited
// unchanged and stay uniform.
type DensityEngine struct {
	Engine

	density float64
	depth   int
	// sequence holds one bit per combining step, least significant
	// first: 0 for AND, 1 for OR.
	sequence uint64

	booleanWord  uint64
	bitsConsumed uint
}

// NewDensity returns a DensityEngine approximating density using
// depth raw words per output word. The density is rounded to the
// nearest multiple of 2^-depth within [2^-depth, 1-2^-depth]; depths
// beyond MaxDepth are reduced to MaxDepth.
func NewDensity(density float64, depth int, seed uint64) (*DensityEngine, error) {
	if !(density > 0 && density < 1) {
		return nil, errors.Errorf(errors.Invalid, "random: density %v not in (0, 1)", density)
	}
	if depth <= 0 {
		return nil, errors.Errorf(errors.Invalid, "random: depth %d must be positive", depth)
	}
	e := &DensityEngine{}
	e.SetSeed(seed)
	e.resolve(density, depth)
	return e, nil
}

// NewDensityTolerance returns a DensityEngine whose resolved density is
// within tolerance of density.
func NewDensityTolerance(density, tolerance float64, seed uint64) (*DensityEngine, error) {
	if !(tolerance > 0 && tolerance < 1) {
		return nil, errors.Errorf(errors.Invalid, "random: tolerance %v not in (0, 1)", tolerance)
	}
	return NewDensity(density, toleranceDepth(tolerance), seed)
}

func (e *DensityEngine) resolve(density float64, depth int) {
	requested := density
	depth = boundDepth(depth)
	density = boundDensity(density, depth)
	numerator := uint64(math.Round(math.Ldexp(density, depth)))
	reductions := bits.TrailingZeros64(numerator)
	numerator >>= uint(reductions)
	e.depth = depth - reductions
	e.sequence = numerator >> 1
	e.density = math.Ldexp(float64(numerator), -e.depth)
	log.Debug.Printf("random: density %v resolved to %d/2^%d = %v", requested, numerator, e.depth, e.density)
}

// Density returns the resolved density: the exact probability that a
// produced bit is live.
func (e *DensityEngine) Density() float64 { return e.density }

// Depth returns the number of raw words combined per output word.
func (e *DensityEngine) Depth() int { return e.depth }

// Uint64 returns a word whose bits are each live with probability
// Density(). It implements bitarray.WordSource, so that
// BitArray.Randomize fills an array to the engine's density.
func (e *DensityEngine) Uint64() uint64 {
	word := e.Engine.Uint64()
	for bit := uint64(1); bit != 1<<uint(e.depth-1); bit <<= 1 {
		if bit&e.sequence == 0 {
			word &= e.Engine.Uint64()
		} else {
			word |= e.Engine.Uint64()
		}
	}
	return word
}

// Uint32 returns the upper half of Uint64.
func (e *DensityEngine) Uint32() uint32 {
	return uint32(e.Uint64() >> 32)
}

// Bool returns true with probability Density(). A density word is
// drawn once every 64 calls.
func (e *DensityEngine) Bool() bool {
	if e.bitsConsumed&63 == 0 {
		e.booleanWord = e.Uint64()
	}
	bit := e.booleanWord & (1 << (e.bitsConsumed & 63))
	e.bitsConsumed++
	return bit != 0
}

// SetSeed reseeds the engine and discards any buffered Bool bits, so
// that the engine continues exactly as a new one with the same seed
// and density.
func (e *DensityEngine) SetSeed(seed uint64) {
	e.Engine.SetSeed(seed)
	e.booleanWord, e.bitsConsumed = 0, 0
}

// Seed implements math/rand.Source.
func (e *DensityEngine) Seed(seed int64) { e.SetSeed(uint64(seed)) }

// NextBitArray returns a new BitArray of size n filled to the engine's
// density.
func (e *DensityEngine) NextBitArray(n int) (*bitarray.BitArray, error) {
	b, err := bitarray.New(n)
	if err != nil {
		return nil, err
	}
	b.Randomize(e)
	return b, nil
}

// NextConcurrentBitArray returns a new ConcurrentBitArray of size n
// filled to the engine's density.
func (e *DensityEngine) NextConcurrentBitArray(n int) (*bitarray.ConcurrentBitArray, error) {
	b, err := bitarray.NewConcurrent(n)
	if err != nil {
		return nil, err
	}
	b.Randomize(e)
	return b, nil
}

// toleranceDepth returns the depth at which the spacing of achievable
// densities is no larger than twice tolerance, so that rounding to the
// nearest one stays within tolerance.
func toleranceDepth(tolerance float64) int {
	_, exp := math.Frexp(boundPercentage(tolerance))
	// Frexp normalizes to [0.5, 1), one above the IEEE exponent.
	return 1 - exp
}

// powerInverse returns 2^-power.
func powerInverse(power int) float64 {
	return math.Ldexp(1, -power)
}

func boundDensity(density float64, depth int) float64 {
	inverse := powerInverse(depth)
	return math.Min(math.Max(density, inverse), 1-inverse)
}

func boundPercentage(p float64) float64 {
	return math.Min(math.Max(p, 0), 1)
}

func boundDepth(depth int) int {
	switch {
	case depth < 1:
		return 1
	case depth > MaxDepth:
		return MaxDepth
	}
	return depth
}
