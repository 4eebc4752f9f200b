package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring"
)

// Values used by the reference continual-pretraining run.
const (
	DefaultHeldOutFraction = 0.995
	DefaultSeed            = 3407
)

// pcgStream decorrelates the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

type SplitOptions struct {
	// HeldOutFraction is the share of the collection excluded from training.
	HeldOutFraction float64
	Seed            int64
}

func (o SplitOptions) Validate() error {
	f := o.HeldOutFraction
	if math.IsNaN(f) || f <= 0 || f >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidFraction, f)
	}
	return nil
}

// Partition is the result of Split. Train and HeldOut are disjoint and
// together cover the input exactly once.
type Partition[T any] struct {
	Train          []T
	HeldOut        []T
	TrainIndices   []int
	HeldOutIndices []int
	// HeldOutSet holds the input indices assigned to HeldOut.
	HeldOutSet *roaring.Bitmap
}

// HeldOutSize is round(fraction*n), rounding half away from zero.
func HeldOutSize(n int, fraction float64) int {
	return int(math.Round(fraction * float64(n)))
}

// Permutation returns the seeded ordering Split uses for n items.
func Permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^pcgStream))
	return rng.Perm(n)
}

// Split partitions items into a training and a held-out subset. Items are
// shuffled with a generator seeded from opts.Seed; the first
// HeldOutSize(len(items)) positions are held out. Both subsets keep the
// shuffled order.
func Split[T any](items []T, opts SplitOptions) (Partition[T], error) {
	if len(items) == 0 {
		return Partition[T]{}, ErrEmptyCollection
	}
	if err := opts.Validate(); err != nil {
		return Partition[T]{}, err
	}
	if uint64(len(items)) > math.MaxUint32 {
		return Partition[T]{}, fmt.Errorf("collection of %d items exceeds split index range", len(items))
	}

	n := len(items)
	held := HeldOutSize(n, opts.HeldOutFraction)
	perm := Permutation(n, opts.Seed)

	p := Partition[T]{
		Train:          make([]T, 0, n-held),
		HeldOut:        make([]T, 0, held),
		TrainIndices:   make([]int, 0, n-held),
		HeldOutIndices: make([]int, 0, held),
		HeldOutSet:     roaring.New(),
	}
	for pos, idx := range perm {
		if pos < held {
			p.HeldOut = append(p.HeldOut, items[idx])
			p.HeldOutIndices = append(p.HeldOutIndices, idx)
			p.HeldOutSet.Add(uint32(idx))
			continue
		}
		p.Train = append(p.Train, items[idx])
		p.TrainIndices = append(p.TrainIndices, idx)
	}
	p.HeldOutSet.RunOptimize()
	return p, nil
}
