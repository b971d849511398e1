package fraud

import (
	"math"
	"math/rand"
	"sort"
)

const (
	DefaultTestFraction = 0.2
	DefaultSplitSeed    = 42
)

// Split holds row indices of the training and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so each class keeps its share in
// both halves. The same labels, fraction and seed always give the same split.
func StratifiedSplit(labels []int, testFraction float64, seed int64) Split {
	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	var s Split
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest == 0 && testFraction > 0 && len(idx) > 1 {
			nTest = 1
		}
		s.Test = append(s.Test, idx[:nTest]...)
		s.Train = append(s.Train, idx[nTest:]...)
	}
	sort.Ints(s.Train)
	sort.Ints(s.Test)
	return s
}

func pick[T any](all []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out
}
