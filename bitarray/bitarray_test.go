// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitarray_test

import (
	"fmt"
	"math/rand"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/bitarray/bitarray"
	"github.com/grailbio/bitarray/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/willf/bitset"
)

var sizes = []int{1, 2, 63, 64, 65, 100, 128, 1000, 1024}

// splitMix is a WordSource for tests that must not depend on package
// random.
type splitMix uint64

func (s *splitMix) Uint64() uint64 {
	*s += 0x9e3779b97f4a7c15
	z := uint64(*s)
	z = (z ^ z>>30) * 0xbf58476d1ce4e5b9
	z = (z ^ z>>27) * 0x94d049bb133111eb
	return z ^ z>>31
}

func newArray(t testing.TB, size int) *bitarray.BitArray {
	b, err := bitarray.New(size)
	require.NoError(t, err)
	return b
}

func randomArray(t testing.TB, size int, seed uint64) *bitarray.BitArray {
	b := newArray(t, size)
	src := splitMix(seed)
	b.Randomize(&src)
	return b
}

// oracle mirrors b into a willf/bitset.
func oracle(b *bitarray.BitArray) *bitset.BitSet {
	o := bitset.New(uint(b.Size()))
	for i := 0; i < b.Size(); i++ {
		if b.Get(i) {
			o.Set(uint(i))
		}
	}
	return o
}

// panicKind runs f and returns the error kind it panicked with.
func panicKind(f func()) (kind errors.Kind, panicked bool) {
	defer func() {
		if v := recover(); v != nil {
			panicked = true
			if err, ok := v.(error); ok {
				kind = errors.Recover(err).Kind
			}
		}
	}()
	f()
	return
}

func TestNew(t *testing.T) {
	for _, size := range []int{0, -1, -64} {
		_, err := bitarray.New(size)
		expect.True(t, errors.Is(errors.Invalid, err))
		_, err = bitarray.NewConcurrent(size)
		expect.True(t, errors.Is(errors.Invalid, err))
	}
	for _, size := range sizes {
		b := newArray(t, size)
		expect.EQ(t, b.Size(), size)
		expect.EQ(t, b.WordCount(), (size+63)/64)
		expect.True(t, b.Dead())
		expect.EQ(t, b.Population(), 0)
	}
}

func TestSingleBit(t *testing.T) {
	for _, size := range sizes {
		b := newArray(t, size)
		r := rand.New(rand.NewSource(int64(size)))
		for iter := 0; iter < 4*size; iter++ {
			i := r.Intn(size)
			prev := b.Get(i)
			switch r.Intn(5) {
			case 0:
				b.Set(i)
				b.Set(i)
				assert.True(t, b.Get(i))
			case 1:
				b.Clear(i)
				assert.False(t, b.Get(i))
			case 2:
				b.Toggle(i)
				assert.Equal(t, !prev, b.Get(i))
			case 3:
				assert.Equal(t, !prev, b.Add(i))
				assert.True(t, b.Get(i))
			case 4:
				assert.Equal(t, prev, b.Remove(i))
				assert.False(t, b.Get(i))
			}
		}
		assert.Equal(t, int(oracle(b).Count()), b.Population())
	}
}

func TestSetRangeExample(t *testing.T) {
	b := newArray(t, 128)
	b.SetRange(0, 64)
	expect.EQ(t, b.Population(), 64)
	expect.EQ(t, b.Density(), 0.5)
	expect.EQ(t, b.Word(0), bitarray.Mask)
	expect.EQ(t, b.Word(1), uint64(0))
}

func TestRanges(t *testing.T) {
	for _, size := range sizes {
		b := randomArray(t, size, uint64(size))
		r := rand.New(rand.NewSource(int64(size)))
		for iter := 0; iter < 200; iter++ {
			from := r.Intn(size + 1)
			to := from + r.Intn(size-from+1)
			want := oracle(b)
			var count int
			for i := from; i < to; i++ {
				if want.Test(uint(i)) {
					count++
				}
			}
			require.Equal(t, count, b.GetRange(from, to), "GetRange(%d, %d)", from, to)
			switch iter % 3 {
			case 0:
				b.SetRange(from, to)
				for i := from; i < to; i++ {
					want.Set(uint(i))
				}
			case 1:
				b.ClearRange(from, to)
				for i := from; i < to; i++ {
					want.Clear(uint(i))
				}
			case 2:
				b.ToggleRange(from, to)
				for i := from; i < to; i++ {
					want.Flip(uint(i))
				}
			}
			require.True(t, want.Equal(oracle(b)), "size %d range [%d, %d)", size, from, to)
			require.Equal(t, int(want.Count()), b.Population())
		}
	}
}

func TestDensityRange(t *testing.T) {
	b := newArray(t, 256)
	b.SetRange(64, 128)
	expect.EQ(t, b.DensityRange(0, 128), 0.5)
	expect.EQ(t, b.DensityRange(64, 128), 1.0)
	expect.EQ(t, b.DensityRange(10, 10), 0.0)
	expect.EQ(t, b.Density(), 0.25)
}

func TestPopulationFuzz(t *testing.T) {
	f := fuzz.NewWithSeed(1).NilChance(0)
	for _, size := range sizes {
		var words []uint64
		f.NumElements(bitarray.WordCount(size), bitarray.WordCount(size)).Fuzz(&words)
		b := newArray(t, size)
		for i, w := range words {
			b.SetWord(i, w)
		}
		count := 0
		for i := 0; i < size; i++ {
			if b.Get(i) {
				count++
			}
		}
		expect.EQ(t, b.Population(), count)
		expect.EQ(t, b.GetRange(0, size), count)
		expect.EQ(t, b.Live(), count == size)
		expect.EQ(t, b.Dead(), count == 0)
	}
}

func TestLastWordClean(t *testing.T) {
	b := newArray(t, 100)
	b.Fill()
	expect.EQ(t, b.Population(), 100)
	expect.True(t, b.Live())
	b.Not()
	expect.True(t, b.Dead())
	b.Not()
	expect.EQ(t, b.Population(), 100)

	b.Empty()
	b.SetWord(1, bitarray.Mask)
	expect.EQ(t, b.Population(), 36)
	b.XorWord(1, bitarray.Mask)
	expect.EQ(t, b.Population(), 0)
	b.OrWord(1, bitarray.Mask)
	expect.EQ(t, b.Population(), 36)
	b.ToggleWord(1)
	expect.EQ(t, b.Population(), 0)
	b.FillWord(1)
	expect.EQ(t, b.Population(), 36)
	b.EmptyWord(1)
	b.SetWordSegment(1, bitarray.Mask, bitarray.Mask>>32<<32)
	expect.EQ(t, b.Population(), 4)
	b.AndWord(1, 0)
	expect.True(t, b.Dead())

	o := newArray(t, 100)
	require.NoError(t, b.NotOf(o))
	expect.True(t, b.Live())
	src := splitMix(7)
	b.Randomize(&src)
	b.XorRandomize(&src)
	b.RandomizeRange(&src, 90, 100)
	b.XorRandomizeRange(&src, 0, 100)
	expect.EQ(t, b.Word(1)&^(bitarray.Mask>>28), uint64(0))
}

func TestWordSegment(t *testing.T) {
	b := newArray(t, 128)
	b.SetWord(0, 0xff00)
	b.SetWordSegment(0, 0x0ff0, 0x00ff)
	expect.EQ(t, b.Word(0), uint64(0xfff0))
	b.AndWord(0, 0x0f0f)
	expect.EQ(t, b.Word(0), uint64(0x0f00))
}

func TestBinary(t *testing.T) {
	for _, size := range sizes {
		a := randomArray(t, size, 1)
		c := randomArray(t, size, 2)
		orig := bitarray.NewFrom(a)

		require.NoError(t, a.And(a))
		expect.True(t, a.Equal(orig))

		x := bitarray.NewFrom(a)
		require.NoError(t, x.Xor(x))
		expect.True(t, x.Dead())

		oa, oc := oracle(a), oracle(c)
		and, or, xor := bitarray.NewFrom(a), bitarray.NewFrom(a), bitarray.NewFrom(a)
		require.NoError(t, and.And(c))
		require.NoError(t, or.Or(c))
		require.NoError(t, xor.Xor(c))
		expect.True(t, oracle(and).Equal(oa.Intersection(oc)))
		expect.True(t, oracle(or).Equal(oa.Union(oc)))
		expect.True(t, oracle(xor).Equal(oa.SymmetricDifference(oc)))

		andNot := bitarray.NewFrom(a)
		require.NoError(t, andNot.AndNot(c))
		expect.True(t, oracle(andNot).Equal(oa.Difference(oc)))

		not := newArray(t, size)
		require.NoError(t, not.NotOf(a))
		expect.EQ(t, not.Population(), size-a.Population())
	}
}

func TestSizeMismatch(t *testing.T) {
	a := newArray(t, 128)
	b := newArray(t, 129)
	for _, op := range []func(bitarray.Words) error{a.And, a.Or, a.Xor, a.AndNot, a.NotOf, a.Copy} {
		err := op(b)
		expect.True(t, errors.Is(errors.SizeMismatch, err), "got %v", err)
	}
	expect.EQ(t, a.CompareSize(b), -1)
	expect.EQ(t, b.CompareSize(a), 1)
	expect.EQ(t, a.CompareSize(a), 0)
	expect.False(t, a.Equal(b))
}

func TestCopy(t *testing.T) {
	a := randomArray(t, 1000, 3)
	b := bitarray.NewFrom(a)
	expect.True(t, b.Equal(a))
	b.Toggle(17)
	expect.False(t, b.Equal(a))
	expect.True(t, a.Get(17) != b.Get(17))

	c := newArray(t, 1000)
	require.NoError(t, c.Copy(a))
	expect.True(t, c.Equal(a))
	c.ClearRange(0, 1000)
	expect.False(t, a.Dead())
}

func bruteNext(b *bitarray.BitArray, i int, live bool) int {
	for ; i < b.Size(); i++ {
		if b.Get(i) == live {
			return i
		}
	}
	return b.Size()
}

func bruteLast(b *bitarray.BitArray, i int, live bool) int {
	for ; i >= 0; i-- {
		if b.Get(i) == live {
			return i
		}
	}
	return -1
}

func TestScan(t *testing.T) {
	for _, size := range sizes {
		var arrays []*bitarray.BitArray
		empty := newArray(t, size)
		full := newArray(t, size)
		full.Fill()
		sparse := newArray(t, size)
		for i := 0; i < size; i += 97 {
			sparse.Set(i)
		}
		arrays = append(arrays, empty, full, sparse, randomArray(t, size, 11))
		for ai, b := range arrays {
			for i := 0; i < size; i++ {
				if got, want := b.NextLive(i), bruteNext(b, i, true); got != want {
					t.Fatalf("array %d size %d: NextLive(%d): got %v, want %v", ai, size, i, got, want)
				}
				if got, want := b.NextDead(i), bruteNext(b, i, false); got != want {
					t.Fatalf("array %d size %d: NextDead(%d): got %v, want %v", ai, size, i, got, want)
				}
				if got, want := b.LastLive(i), bruteLast(b, i, true); got != want {
					t.Fatalf("array %d size %d: LastLive(%d): got %v, want %v", ai, size, i, got, want)
				}
				if got, want := b.LastDead(i), bruteLast(b, i, false); got != want {
					t.Fatalf("array %d size %d: LastDead(%d): got %v, want %v", ai, size, i, got, want)
				}
			}
		}
	}
}

func TestOutOfRange(t *testing.T) {
	b := newArray(t, 100)
	for _, c := range []struct {
		name string
		f    func()
	}{
		{"Get(-1)", func() { b.Get(-1) }},
		{"Get(size)", func() { b.Get(100) }},
		{"Set", func() { b.Set(100) }},
		{"Clear", func() { b.Clear(-5) }},
		{"Toggle", func() { b.Toggle(1 << 20) }},
		{"Add", func() { b.Add(100) }},
		{"Remove", func() { b.Remove(100) }},
		{"SetRange reversed", func() { b.SetRange(5, 3) }},
		{"ClearRange past end", func() { b.ClearRange(0, 101) }},
		{"ToggleRange negative", func() { b.ToggleRange(-1, 3) }},
		{"GetRange", func() { b.GetRange(50, 101) }},
		{"Word", func() { b.Word(2) }},
		{"SetWord", func() { b.SetWord(-1, 0) }},
		{"OrWord", func() { b.OrWord(2, 1) }},
		{"NextLive", func() { b.NextLive(100) }},
		{"LastDead", func() { b.LastDead(-1) }},
	} {
		kind, panicked := panicKind(c.f)
		if !panicked {
			t.Errorf("%s: expected panic", c.name)
			continue
		}
		if got, want := kind, errors.OutOfRange; got != want {
			t.Errorf("%s: got %v, want %v", c.name, got, want)
		}
	}
	// Empty ranges at the end are valid.
	b.SetRange(100, 100)
	expect.EQ(t, b.GetRange(100, 100), 0)
}

func TestRandomizeRange(t *testing.T) {
	for _, size := range sizes {
		b := newArray(t, size)
		b.Fill()
		from, to := size/4, size-size/4
		src := splitMix(5)
		b.RandomizeRange(&src, from, to)
		expect.EQ(t, b.GetRange(0, from), from)
		expect.EQ(t, b.GetRange(to, size), size-to)

		c := newArray(t, size)
		c.XorRandomizeRange(&src, from, to)
		expect.EQ(t, c.GetRange(0, from), 0)
		expect.EQ(t, c.GetRange(to, size), 0)
		// Injecting entropy twice with the same stream cancels out.
		s1, s2 := splitMix(9), splitMix(9)
		d := randomArray(t, size, 13)
		orig := bitarray.NewFrom(d)
		d.XorRandomize(&s1)
		d.XorRandomize(&s2)
		expect.True(t, d.Equal(orig))
	}
}

func naiveBitScanAdder(b *bitarray.BitArray) int {
	tot := 0
	for i := 0; i != b.Size(); i++ {
		if b.Get(i) {
			tot += i
		}
	}
	return tot
}

func TestScanner(t *testing.T) {
	maxSize := 500 * bitarray.WordSize
	nIter := 200
	r := rand.New(rand.NewSource(1))
	for iter := 0; iter < nIter; iter++ {
		size := 1 + r.Intn(maxSize)
		b := randomArray(t, size, uint64(iter))
		if iter%5 == 0 {
			b.ClearRange(0, size/2)
		}
		tot1 := 0
		for s, i := bitarray.NewScanner(b); i != -1; i = s.Next() {
			tot1 += i
		}
		tot2 := naiveBitScanAdder(b)
		if tot1 != tot2 {
			t.Fatal("Mismatched bit-index sums.")
		}
	}
	_, i := bitarray.NewScanner(newArray(t, 70))
	expect.EQ(t, i, -1)
}

func benchmarkScanner(b *testing.B, spacing int) {
	const nBits = 1 << 16
	arr := newArray(b, nBits)
	for i := spacing - 1; i < nBits; i += spacing {
		arr.Set(i)
	}
	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		tot := 0
		for s, i := bitarray.NewScanner(arr); i != -1; i = s.Next() {
			tot += i
		}
	}
}

func benchmarkWillfNextSet(b *testing.B, spacing int) {
	const nBits = 1 << 16
	bset := bitset.New(nBits)
	for i := spacing - 1; i < nBits; i += spacing {
		bset.Set(uint(i))
	}
	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		tot := uint(0)
		for i, e := bset.NextSet(0); e; i, e = bset.NextSet(i + 1) {
			tot += i
		}
	}
}

func BenchmarkScanner(b *testing.B) {
	for _, spacing := range []int{1, 369} {
		b.Run(fmt.Sprintf("spacing=%d", spacing), func(b *testing.B) { benchmarkScanner(b, spacing) })
		b.Run(fmt.Sprintf("willf/spacing=%d", spacing), func(b *testing.B) { benchmarkWillfNextSet(b, spacing) })
	}
}

func BenchmarkPopulation(b *testing.B) {
	arr := randomArray(b, 1<<20, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = arr.Population()
	}
}
