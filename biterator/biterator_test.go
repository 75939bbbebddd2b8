// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package biterator_test

import (
	"fmt"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/go-test/deep"
	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/biterator"
	"github.com/grailbio/bitarray/errors"
	"github.com/grailbio/bitarray/random"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func densityArray(t testing.TB, size int, density float64, seed uint64) *bitarray.BitArray {
	e, err := random.NewDensity(density, 10, seed)
	require.NoError(t, err)
	b, err := bitarray.New(size)
	require.NoError(t, err)
	b.Randomize(e)
	return b
}

func toRoaring(b bitarray.Words) *roaring.Bitmap {
	rb := roaring.New()
	for s, i := bitarray.NewScanner(b); i != -1; i = s.Next() {
		rb.Add(uint32(i))
	}
	return rb
}

func toBitset(b *bitarray.BitArray) *bitset.BitSet {
	bs := bitset.New(uint(b.Size()))
	for s, i := bitarray.NewScanner(b); i != -1; i = s.Next() {
		bs.Set(uint(i))
	}
	return bs
}

// clip returns the elements of rb in [from, to).
func clip(rb *roaring.Bitmap, from, to int) []int {
	var out []int
	for _, v := range rb.ToArray() {
		if int(v) >= from && int(v) < to {
			out = append(out, int(v))
		}
	}
	return out
}

// splitAll splits b until no fragment splits further and returns the
// fragments in range order.
func splitAll(b biterator.Biterator) []biterator.Biterator {
	lo := b.TrySplit()
	if lo == nil {
		return []biterator.Biterator{b}
	}
	return append(splitAll(lo), splitAll(b)...)
}

// checkSplits verifies that the fragments of b produce want, in order,
// and never share a word.
func checkSplits(t *testing.T, b biterator.Biterator, want []int) {
	t.Helper()
	frags := splitAll(b)
	var got []int
	lastWord := -1
	for k, f := range frags {
		elems := biterator.Collect(f)
		if len(elems) > 0 {
			if w := bitarray.WordIndex(elems[0]); w <= lastWord {
				t.Errorf("fragment %d starts in word %d, already used by its predecessor", k, w)
			}
			lastWord = bitarray.WordIndex(elems[len(elems)-1])
		}
		got = append(got, elems...)
		expect.False(t, f.TryAdvance(func(int) { t.Error("exhausted fragment produced an element") }))
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}

func TestSplitUnion(t *testing.T) {
	for _, size := range []int{1024, 1000, 4099} {
		for _, density := range []float64{0.3, 0.7} {
			a := densityArray(t, size, density, 1)
			b := densityArray(t, size, density, 2)
			ra, rb := toRoaring(a), toRoaring(b)
			dead := roaring.Flip(ra, 0, uint64(size))
			for _, r := range [][2]int{{0, size}, {3, size - 5}, {130, 131}, {size, size}} {
				from, to := r[0], r[1]
				t.Run(fmt.Sprintf("%d/%v/%d-%d", size, density, from, to), func(t *testing.T) {
					rng, err := biterator.NewRange(from, to)
					require.NoError(t, err)
					var all []int
					for i := from; i < to; i++ {
						all = append(all, i)
					}
					checkSplits(t, rng, all)

					live, err := biterator.NewLive(a, from, to)
					require.NoError(t, err)
					checkSplits(t, live, clip(ra, from, to))

					d, err := biterator.NewDead(a, from, to)
					require.NoError(t, err)
					checkSplits(t, d, clip(dead, from, to))

					and, err := biterator.NewAnd(a, b, from, to)
					require.NoError(t, err)
					checkSplits(t, and, clip(roaring.And(ra, rb), from, to))

					or, err := biterator.NewOr(a, b, from, to)
					require.NoError(t, err)
					checkSplits(t, or, clip(roaring.Or(ra, rb), from, to))

					xor, err := biterator.NewXor(a, b, from, to)
					require.NoError(t, err)
					checkSplits(t, xor, clip(roaring.Xor(ra, rb), from, to))
				})
			}
		}
	}
}

func TestSplitsHappen(t *testing.T) {
	a := densityArray(t, 1024, 0.7, 3)
	live, err := biterator.NewLive(a, 0, a.Size())
	require.NoError(t, err)
	lo := live.TrySplit()
	require.NotNil(t, lo)
	expect.EQ(t, lo.Position(), 0)
	expect.EQ(t, lo.End(), 512)
	expect.EQ(t, live.Position(), 512)
	expect.EQ(t, live.End(), 1024)

	// A sparse range is too small to split.
	s := densityArray(t, 1024, 0.1, 3)
	sparse, err := biterator.NewLive(s, 0, s.Size())
	require.NoError(t, err)
	assert.Nil(t, sparse.TrySplit())

	rng, err := biterator.NewRange(0, biterator.Threshold)
	require.NoError(t, err)
	assert.Nil(t, rng.TrySplit())
	rng, err = biterator.NewRange(0, biterator.Threshold+1)
	require.NoError(t, err)
	assert.NotNil(t, rng.TrySplit())
}

func TestArray(t *testing.T) {
	a := densityArray(t, 4096, 0.3, 4)
	items := biterator.Collect(mustLive(t, a))
	arr, err := biterator.NewArray(items, 0, len(items))
	require.NoError(t, err)
	checkSplits(t, arr, items)

	arr, err = biterator.NewArray(items, 10, len(items)-10)
	require.NoError(t, err)
	checkSplits(t, arr, items[10:len(items)-10])

	// Every item from the middle on shares a word: the split is refused.
	same := make([]int, 300)
	for i := range same {
		same[i] = i / 5
	}
	arr, err = biterator.NewArray(same, 0, len(same))
	require.NoError(t, err)
	assert.Nil(t, arr.TrySplit())
	expect.EQ(t, arr.EstimateSize(), int64(300))

	// Repeated and descending items give up parallelism but are still
	// produced in full.
	repeated := make([]int, 1000)
	for i := range repeated {
		repeated[i] = 777
	}
	descending := make([]int, 1000)
	for i := range descending {
		descending[i] = 64 * (len(descending) - i)
	}
	for _, items := range [][]int{repeated, descending} {
		arr, err = biterator.NewArray(items, 0, len(items))
		require.NoError(t, err)
		assert.Nil(t, arr.TrySplit())
		expect.EQ(t, biterator.Collect(arr), items)
	}
}

func mustLive(t *testing.T, w bitarray.Words) *biterator.Live {
	l, err := biterator.NewLive(w, 0, w.Size())
	require.NoError(t, err)
	return l
}

func TestExactAndEstimate(t *testing.T) {
	for _, density := range []float64{0.1, 0.5, 0.9} {
		a := densityArray(t, 1<<14, density, 5)
		bs := toBitset(a)
		live := mustLive(t, a)
		expect.EQ(t, live.ExactSize(), int64(bs.Count()))
		assert.InDelta(t, float64(bs.Count()), float64(live.EstimateSize()), 0.1*float64(a.Size()))

		dead, err := biterator.NewDead(a, 0, a.Size())
		require.NoError(t, err)
		expect.EQ(t, dead.ExactSize(), int64(a.Size())-int64(bs.Count()))

		// Consume half; the estimate tracks the scanned words.
		for live.Position() < a.Size()/2 {
			live.TryAdvance(func(int) {})
		}
		rest := int64(a.GetRange(live.Position(), a.Size()))
		expect.EQ(t, live.ExactSize(), rest)
		assert.InDelta(t, float64(rest), float64(live.EstimateSize()), 0.1*float64(a.Size()))
	}
}

func TestFunctionOracle(t *testing.T) {
	a := densityArray(t, 3000, 0.4, 6)
	b := densityArray(t, 3000, 0.6, 7)
	ba, bb := toBitset(a), toBitset(b)
	for _, test := range []struct {
		name string
		ctor func(a, b bitarray.Words, from, to int) (*biterator.Function, error)
		want *bitset.BitSet
	}{
		{"and", biterator.NewAnd, ba.Intersection(bb)},
		{"or", biterator.NewOr, ba.Union(bb)},
		{"xor", biterator.NewXor, ba.SymmetricDifference(bb)},
	} {
		f, err := test.ctor(a, b, 0, a.Size())
		require.NoError(t, err, test.name)
		expect.EQ(t, f.ExactSize(), int64(test.want.Count()), test.name)
		var want []int
		for i, ok := test.want.NextSet(0); ok; i, ok = test.want.NextSet(i + 1) {
			want = append(want, int(i))
		}
		if diff := deep.Equal(biterator.Collect(f), want); diff != nil {
			t.Error(test.name, diff)
		}
	}
}

func TestConstructorErrors(t *testing.T) {
	a := densityArray(t, 100, 0.5, 8)
	b := densityArray(t, 101, 0.5, 8)
	for _, r := range [][2]int{{-1, 10}, {10, 9}, {0, 101}, {101, 101}} {
		_, err := biterator.NewLive(a, r[0], r[1])
		expect.True(t, errors.Is(errors.OutOfRange, err), "live %v", r)
		_, err = biterator.NewDead(a, r[0], r[1])
		expect.True(t, errors.Is(errors.OutOfRange, err), "dead %v", r)
		_, err = biterator.NewAnd(a, a, r[0], r[1])
		expect.True(t, errors.Is(errors.OutOfRange, err), "and %v", r)
	}
	_, err := biterator.NewRange(5, 4)
	expect.True(t, errors.Is(errors.OutOfRange, err))
	_, err = biterator.NewArray([]int{1, 2}, 0, 3)
	expect.True(t, errors.Is(errors.OutOfRange, err))

	for _, fn := range []func(a, b bitarray.Words, from, to int) (*biterator.Function, error){
		biterator.NewAnd, biterator.NewOr, biterator.NewXor,
	} {
		_, err := fn(a, b, 0, 10)
		expect.True(t, errors.Is(errors.SizeMismatch, err))
	}

	// Empty ranges are valid and immediately exhausted.
	l, err := biterator.NewLive(a, 50, 50)
	require.NoError(t, err)
	expect.EQ(t, l.EstimateSize(), int64(0))
	expect.False(t, l.TryAdvance(func(int) {}))
}

func TestSeq(t *testing.T) {
	a := densityArray(t, 1000, 0.5, 9)
	var got []int
	for i := range biterator.Seq(mustLive(t, a)) {
		got = append(got, i)
	}
	want := clip(toRoaring(a), 0, 1000)
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}

	// Breaking out leaves the rest for the caller.
	l := mustLive(t, a)
	n := 0
	for range biterator.Seq(l) {
		if n++; n == 10 {
			break
		}
	}
	rest := biterator.Collect(l)
	if diff := deep.Equal(rest, want[10:]); diff != nil {
		t.Error(diff)
	}
}

func TestMixedAdvance(t *testing.T) {
	a := densityArray(t, 777, 0.5, 10)
	want := clip(toRoaring(a), 0, 777)
	d := mustLive(t, a)
	var got []int
	for k := 0; k < 5; k++ {
		d.TryAdvance(func(i int) { got = append(got, i) })
	}
	d.ForEachRemaining(func(i int) { got = append(got, i) })
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}

func TestCharacteristics(t *testing.T) {
	r, err := biterator.NewRange(0, 10)
	require.NoError(t, err)
	expect.True(t, r.Characteristics().Has(biterator.Sized|biterator.Ordered|biterator.Distinct))
	l := mustLive(t, densityArray(t, 10, 0.5, 1))
	expect.True(t, l.Characteristics().Has(biterator.Ordered|biterator.Distinct))
	expect.False(t, l.Characteristics().Has(biterator.Sized))
}

func BenchmarkLive(b *testing.B) {
	a := densityArray(b, 1<<16, 0.3, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l, _ := biterator.NewLive(a, 0, a.Size())
		n := 0
		l.ForEachRemaining(func(int) { n++ })
	}
}
