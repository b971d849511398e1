// Package forest implements a random forest of CART classification trees.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Config controls training.
type Config struct {
	Trees int `json:"trees"`
	// MaxDepth bounds tree depth; zero means DefaultMaxDepth.
	MaxDepth       int `json:"maxDepth"`
	MinSamplesLeaf int `json:"minSamplesLeaf"`
	// MaxFeatures is the number of features tried per split; zero means
	// the square root of the feature count.
	MaxFeatures int   `json:"maxFeatures"`
	Seed        int64 `json:"seed"`
	// Balanced weights classes inversely to their frequency.
	Balanced bool `json:"balanced"`
}

const (
	DefaultTrees    = 100
	DefaultMaxDepth = 20
	DefaultSeed     = 42
)

// DefaultConfig mirrors the classifier settings used by the pipeline.
func DefaultConfig() Config {
	return Config{Trees: DefaultTrees, MaxDepth: DefaultMaxDepth, MinSamplesLeaf: 1, Seed: DefaultSeed, Balanced: true}
}

// Node is one node of a tree. Leaves carry class probabilities; internal
// nodes send x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Probs     []float64 `json:"p,omitempty"`
}

// Leaf reports whether n is a leaf.
func (n *Node) Leaf() bool { return n.Probs != nil }

// Tree is a flat CART tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) proba(x []float64) []float64 {
	n := &t.Nodes[0]
	for !n.Leaf() {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Probs
}

// Forest is a trained ensemble.
type Forest struct {
	Config   Config `json:"config"`
	Classes  int    `json:"classes"`
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

// ErrEmpty is returned when there is nothing to train on.
var ErrEmpty = errors.New("no training samples")

// Fit trains a forest on rows X with integer class labels y in [0, k).
func Fit(X [][]float64, y []int, cfg Config) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d labels", len(X), len(y))
	}
	nf := len(X[0])
	classes := 0
	for i, label := range y {
		if label < 0 {
			return nil, fmt.Errorf("row %d: negative label %d", i, label)
		}
		if len(X[i]) != nf {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(X[i]), nf)
		}
		classes = max(classes, label+1)
	}
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultTrees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > nf {
		cfg.MaxFeatures = max(1, int(math.Sqrt(float64(nf))))
	}

	classWeight := make([]float64, classes)
	for c := range classWeight {
		classWeight[c] = 1
	}
	if cfg.Balanced {
		counts := make([]int, classes)
		for _, label := range y {
			counts[label]++
		}
		for c, n := range counts {
			if n > 0 {
				classWeight[c] = float64(len(y)) / float64(classes*n)
			}
		}
	}

	f := &Forest{Config: cfg, Classes: classes, Features: nf, Trees: make([]Tree, cfg.Trees)}
	rng := rand.New(rand.NewSource(cfg.Seed))
	for t := range f.Trees {
		b := &builder{
			X:       X,
			y:       y,
			classes: classes,
			cfg:     cfg,
			rng:     rand.New(rand.NewSource(rng.Int63())),
		}
		// Bootstrap: each draw adds the sample's class weight once more.
		w := make([]float64, len(X))
		for range X {
			i := b.rng.Intn(len(X))
			w[i] += classWeight[y[i]]
		}
		idx := make([]int, 0, len(X))
		for i, wi := range w {
			if wi > 0 {
				idx = append(idx, i)
			}
		}
		b.w = w
		b.grow(idx, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
	return f, nil
}

// PredictProba returns the mean class probabilities over all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	out := make([]float64, f.Classes)
	for i := range f.Trees {
		for c, p := range f.Trees[i].proba(x) {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

// Predict returns the most probable class. Ties go to the lower class.
func (f *Forest) Predict(x []float64) int {
	probs := f.PredictProba(x)
	best := 0
	for c, p := range probs {
		if p > probs[best] {
			best = c
		}
	}
	return best
}

type builder struct {
	X       [][]float64
	y       []int
	w       []float64
	classes int
	cfg     Config
	rng     *rand.Rand
	nodes   []Node
}

func (b *builder) counts(idx []int) ([]float64, float64) {
	c := make([]float64, b.classes)
	total := 0.0
	for _, i := range idx {
		c[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return c, total
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / total
		s -= p * p
	}
	return s
}

func (b *builder) leaf(counts []float64, total float64) int {
	probs := make([]float64, b.classes)
	if total > 0 {
		for c := range probs {
			probs[c] = counts[c] / total
		}
	}
	b.nodes = append(b.nodes, Node{Probs: probs})
	return len(b.nodes) - 1
}

// grow builds the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	counts, total := b.counts(idx)
	impurity := gini(counts, total)
	if depth >= b.cfg.MaxDepth || len(idx) < 2*b.cfg.MinSamplesLeaf || impurity == 0 {
		return b.leaf(counts, total)
	}

	feature, threshold, ok := b.bestSplit(idx, impurity, total)
	if !ok {
		return b.leaf(counts, total)
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

func (b *builder) bestSplit(idx []int, parent, total float64) (int, float64, bool) {
	nf := len(b.X[0])
	features := b.rng.Perm(nf)[:b.cfg.MaxFeatures]

	bestGain := 1e-12
	bestFeature, bestThreshold, found := 0, 0.0, false
	sorted := make([]int, len(idx))
	left := make([]float64, b.classes)
	minLeaf := b.cfg.MinSamplesLeaf

	for _, f := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue
		}
		right, _ := b.counts(sorted)
		for c := range left {
			left[c] = 0
		}
		lw := 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			lw += b.w[i]
			v, next := b.X[i][f], b.X[sorted[k+1]][f]
			if v == next || k+1 < minLeaf || len(sorted)-k-1 < minLeaf {
				continue
			}
			rw := total - lw
			gain := parent - (lw/total)*gini(left, lw) - (rw/total)*gini(right, rw)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = v + (next-v)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
