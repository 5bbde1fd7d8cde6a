package forest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const leaf = -1

// Tree is a fitted binary decision tree stored as flat node arrays.
// Node 0 is the root. For a leaf, Feature is -1 and Left/Right are unused.
// Value holds the class fractions of the training samples that reached the
// node, indexed like Forest.Classes.
type Tree struct {
	Feature   []int       `json:"feature"`
	Threshold []float64   `json:"threshold"`
	Left      []int       `json:"left"`
	Right     []int       `json:"right"`
	Value     [][]float64 `json:"value"`
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int { return len(t.Feature) }

// Apply returns the leaf reached by row.
func (t *Tree) Apply(row []float64) int {
	n := 0
	for t.Feature[n] != leaf {
		if row[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return n
}

func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != nClasses {
			return fmt.Errorf("node %d: %d class values, want %d", i, len(t.Value[i]), nClasses)
		}
		if t.Feature[i] == leaf {
			continue
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, t.Feature[i])
		}
		// children always come after their parent, so walks terminate
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// impurity scores a class-count vector under the configured criterion.
type impurity func(counts []float64, total float64) float64

func entropy(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	p := make([]float64, len(counts))
	copy(p, counts)
	floats.Scale(1/total, p)
	return stat.Entropy(p) / math.Ln2
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		q := c / total
		s -= q * q
	}
	return s
}

func criterionFunc(name string) (impurity, error) {
	switch name {
	case CriterionEntropy, "log_loss":
		return entropy, nil
	case CriterionGini:
		return gini, nil
	}
	return nil, fmt.Errorf("unknown criterion %q", name)
}

// builder grows a single tree depth-first.
type builder struct {
	x         mat.Matrix
	y         []int
	nClasses  int
	maxFeat   int
	minSplit  int
	minLeaf   int
	maxDepth  int
	impurity  impurity
	rng       *rand.Rand
	tree      *Tree
	nFeatures int
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.nClasses)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func (b *builder) addNode(counts []float64) int {
	v := make([]float64, len(counts))
	copy(v, counts)
	if total := floats.Sum(v); total > 0 {
		floats.Scale(1/total, v)
	}
	t := b.tree
	t.Feature = append(t.Feature, leaf)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, leaf)
	t.Right = append(t.Right, leaf)
	t.Value = append(t.Value, v)
	return len(t.Feature) - 1
}

func (b *builder) grow(idx []int, depth int) int {
	counts := b.counts(idx)
	node := b.addNode(counts)

	total := float64(len(idx))
	if len(idx) < b.minSplit || len(idx) < 2*b.minLeaf {
		return node
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return node
	}
	if b.impurity(counts, total) <= 1e-7 {
		return node
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.tree.Feature[node] = feature
	b.tree.Threshold[node] = threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Left[node] = l
	b.tree.Right[node] = r
	return node
}

// bestSplit draws candidate features in random order and evaluates every
// threshold between consecutive distinct values. Constant features do not
// count towards maxFeat, so a split is found whenever one exists.
func (b *builder) bestSplit(idx []int, counts []float64) (int, float64, bool) {
	type pair struct {
		v float64
		c int
	}
	sorted := make([]pair, len(idx))

	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	visited := 0
	total := float64(len(idx))

	for _, f := range b.rng.Perm(b.nFeatures) {
		if visited >= b.maxFeat && bestFeature >= 0 {
			break
		}
		for k, i := range idx {
			sorted[k] = pair{v: b.x.At(i, f), c: b.y[i]}
		}
		slices.SortFunc(sorted, func(a, c pair) int {
			switch {
			case a.v < c.v:
				return -1
			case a.v > c.v:
				return 1
			}
			return 0
		})
		if sorted[0].v == sorted[len(sorted)-1].v {
			continue
		}
		visited++

		left := make([]float64, b.nClasses)
		right := slices.Clone(counts)
		for k := 1; k < len(sorted); k++ {
			left[sorted[k-1].c]++
			right[sorted[k-1].c]--
			if sorted[k].v <= sorted[k-1].v {
				continue
			}
			nl, nr := float64(k), total-float64(k)
			if k < b.minLeaf || len(sorted)-k < b.minLeaf {
				continue
			}
			score := nl*b.impurity(left, nl) + nr*b.impurity(right, nr)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = sorted[k-1].v/2 + sorted[k].v/2
				if bestThreshold >= sorted[k].v || math.IsInf(bestThreshold, 0) {
					bestThreshold = sorted[k-1].v
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
