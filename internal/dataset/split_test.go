package dataset

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSplitReferenceExample(t *testing.T) {
	formatted, err := Format(RecordsFromTexts([]string{"a", "b", "c", "d", "e"}), "</s>")
	require.NoError(t, err)

	opts := SplitOptions{HeldOutFraction: 0.6, Seed: 42}
	p, err := Split(formatted, opts)
	require.NoError(t, err)

	assert.Len(t, p.Train, 2)
	assert.Len(t, p.HeldOut, 3)
	for _, r := range append(append([]FormattedRecord{}, p.Train...), p.HeldOut...) {
		assert.Equal(t, r.Text+"</s>", r.TextCustom)
	}

	again, err := Split(formatted, opts)
	require.NoError(t, err)
	assert.Equal(t, p.Train, again.Train)
	assert.Equal(t, p.HeldOut, again.HeldOut)
	assert.True(t, p.HeldOutSet.Equals(again.HeldOutSet))
}

func TestSplitCoversInputWithoutDuplication(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100, 1001} {
		for _, f := range []float64{0.001, 0.1, 0.5, 0.6, 0.995, 0.999} {
			p, err := Split(intRange(n), SplitOptions{HeldOutFraction: f, Seed: 3407})
			require.NoError(t, err)

			assert.Equal(t, n, len(p.Train)+len(p.HeldOut), "n=%d f=%v", n, f)
			assert.Equal(t, HeldOutSize(n, f), len(p.HeldOut), "n=%d f=%v", n, f)
			assert.EqualValues(t, len(p.HeldOut), p.HeldOutSet.GetCardinality())

			all := append(append([]int{}, p.Train...), p.HeldOut...)
			sort.Ints(all)
			assert.Equal(t, intRange(n), all, "n=%d f=%v", n, f)

			for _, v := range p.Train {
				assert.False(t, p.HeldOutSet.Contains(uint32(v)))
			}
			for _, v := range p.HeldOut {
				assert.True(t, p.HeldOutSet.Contains(uint32(v)))
			}
		}
	}
}

func TestSplitIndicesMapToItems(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}
	p, err := Split(items, SplitOptions{HeldOutFraction: 0.5, Seed: 1})
	require.NoError(t, err)

	for i, idx := range p.TrainIndices {
		assert.Equal(t, items[idx], p.Train[i])
	}
	for i, idx := range p.HeldOutIndices {
		assert.Equal(t, items[idx], p.HeldOut[i])
	}
}

func TestSplitDeterministicForSeed(t *testing.T) {
	items := intRange(500)
	opts := SplitOptions{HeldOutFraction: 0.3, Seed: 3407}

	a, err := Split(items, opts)
	require.NoError(t, err)
	b, err := Split(items, opts)
	require.NoError(t, err)
	assert.Equal(t, a.TrainIndices, b.TrainIndices)
	assert.True(t, a.HeldOutSet.Equals(b.HeldOutSet))

	c, err := Split(items, SplitOptions{HeldOutFraction: 0.3, Seed: 3408})
	require.NoError(t, err)
	assert.False(t, a.HeldOutSet.Equals(c.HeldOutSet), "different seeds should give different membership")
}

func TestSplitBoundaryFractions(t *testing.T) {
	items := intRange(200)

	low, err := Split(items, SplitOptions{HeldOutFraction: 1e-9, Seed: 7})
	require.NoError(t, err)
	assert.Empty(t, low.HeldOut)
	assert.Len(t, low.Train, 200)

	high, err := Split(items, SplitOptions{HeldOutFraction: 1 - 1e-9, Seed: 7})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(high.Train), 1)

	ref, err := Split(items, SplitOptions{HeldOutFraction: DefaultHeldOutFraction, Seed: DefaultSeed})
	require.NoError(t, err)
	assert.Len(t, ref.Train, 1)
	assert.Len(t, ref.HeldOut, 199)
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	_, err := Split([]int{}, SplitOptions{HeldOutFraction: 0.5})
	assert.ErrorIs(t, err, ErrEmptyCollection)

	_, err = Split[int](nil, SplitOptions{HeldOutFraction: 0.5})
	assert.ErrorIs(t, err, ErrEmptyCollection)

	for _, f := range []float64{0, 1, -0.1, 1.5, math.NaN(), math.Inf(1)} {
		_, err := Split(intRange(10), SplitOptions{HeldOutFraction: f})
		assert.ErrorIs(t, err, ErrInvalidFraction, "fraction %v", f)
	}
}

func TestHeldOutSizeRounding(t *testing.T) {
	assert.Equal(t, 3, HeldOutSize(5, 0.6))
	assert.Equal(t, 3, HeldOutSize(5, 0.5))
	assert.Equal(t, 2, HeldOutSize(5, 0.45))
	assert.Equal(t, 0, HeldOutSize(100, 0.004))
	assert.Equal(t, 1, HeldOutSize(100, 0.005))
}

func TestPermutationIsAPermutation(t *testing.T) {
	perm := Permutation(64, 99)
	sorted := append([]int{}, perm...)
	sort.Ints(sorted)
	assert.Equal(t, intRange(64), sorted)
	assert.Equal(t, perm, Permutation(64, 99))
}
