/*
PURPOSE:
  Random-forest classifier used by the train, evaluate and serve stages.
  Bagged decision trees with random feature subsets per split; class
  probabilities are the mean of the per-tree leaf class fractions.

REQUIREMENTS:
  - Same data + same RandomState must give the same forest.
  - Predictions must be safe for concurrent use after Fit/Load.

IMPLEMENTATION RULES:
  - Classes are sorted; probability vectors are indexed like Classes.
  - Argmax ties resolve to the first class.

RELATED FILES:
  - internal/forest/persist.go
  - internal/engine/train.go
*/

package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Split criteria.
const (
	CriterionEntropy = "entropy"
	CriterionGini    = "gini"
)

// TypeName identifies the estimator in /model/info and tracking tags.
const TypeName = "RandomForestClassifier"

// Params configures Fit. Zero MaxFeatures means sqrt(n_features); zero
// MaxDepth means unlimited.
type Params struct {
	NEstimators     int    `json:"n_estimators"`
	Criterion       string `json:"criterion"`
	MaxFeatures     int    `json:"max_features"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	Bootstrap       bool   `json:"bootstrap"`
	RandomState     uint64 `json:"random_state"`
}

// DefaultParams mirrors the usual random-forest defaults with an entropy
// criterion and seed 42.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		Criterion:       CriterionEntropy,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
	}
}

// Forest is a fitted classifier.
type Forest struct {
	Params       Params   `json:"params"`
	Classes      []string `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	Trees        []Tree   `json:"trees"`
}

// ErrFeatureMismatch is returned when an input row does not match the
// features the forest was fitted on.
var ErrFeatureMismatch = errors.New("feature mismatch")

// Fit trains a forest on x (samples × features) and labels y.
func Fit(x mat.Matrix, y []string, features []string, p Params) (*Forest, error) {
	r, c := x.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("%d samples but %d labels", r, len(y))
	}
	if len(features) != c {
		return nil, fmt.Errorf("%d feature names for %d columns", len(features), c)
	}
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("n_estimators must be positive, got %d", p.NEstimators)
	}
	imp, err := criterionFunc(p.Criterion)
	if err != nil {
		return nil, err
	}

	classes := slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	if len(classes) == 0 {
		return nil, errors.New("no training samples")
	}
	yi := make([]int, r)
	for i, label := range y {
		yi[i], _ = slices.BinarySearch(classes, label)
	}

	maxFeat := p.MaxFeatures
	if maxFeat <= 0 {
		maxFeat = max(1, int(math.Sqrt(float64(c))))
	}
	maxFeat = min(maxFeat, c)

	f := &Forest{
		Params:       p,
		Classes:      classes,
		FeatureNames: slices.Clone(features),
		Trees:        make([]Tree, p.NEstimators),
	}

	seeds := rand.New(rand.NewPCG(p.RandomState, p.RandomState))
	for t := range f.Trees {
		s := seeds.Uint64()
		rng := rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))

		idx := make([]int, r)
		if p.Bootstrap {
			for i := range idx {
				idx[i] = rng.IntN(r)
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}

		b := &builder{
			x:         x,
			y:         yi,
			nClasses:  len(classes),
			maxFeat:   maxFeat,
			minSplit:  max(2, p.MinSamplesSplit),
			minLeaf:   max(1, p.MinSamplesLeaf),
			maxDepth:  p.MaxDepth,
			impurity:  imp,
			rng:       rng,
			tree:      &f.Trees[t],
			nFeatures: c,
		}
		b.grow(idx, 0)
	}
	return f, nil
}

// PredictProbaRow returns the class probability vector for one sample.
func (f *Forest) PredictProbaRow(row []float64) ([]float64, error) {
	if len(row) != len(f.FeatureNames) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(row), len(f.FeatureNames))
	}
	proba := make([]float64, len(f.Classes))
	for i := range f.Trees {
		t := &f.Trees[i]
		floats.Add(proba, t.Value[t.Apply(row)])
	}
	if total := floats.Sum(proba); total > 0 {
		floats.Scale(1/total, proba)
	}
	return proba, nil
}

// PredictRow returns the most probable class and the probability vector.
func (f *Forest) PredictRow(row []float64) (string, []float64, error) {
	proba, err := f.PredictProbaRow(row)
	if err != nil {
		return "", nil, err
	}
	return f.Classes[floats.MaxIdx(proba)], proba, nil
}

// PredictNamed maps named features onto the fitted column order and predicts.
func (f *Forest) PredictNamed(values map[string]float64) (string, []float64, error) {
	row := make([]float64, len(f.FeatureNames))
	for i, name := range f.FeatureNames {
		v, ok := values[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: missing feature %q", ErrFeatureMismatch, name)
		}
		row[i] = v
	}
	return f.PredictRow(row)
}

// Predict labels every row of x. features names the columns of x and must
// match the fitted feature order.
func (f *Forest) Predict(x mat.Matrix, features []string) ([]string, error) {
	if !slices.Equal(features, f.FeatureNames) {
		return nil, fmt.Errorf("%w: got columns %v, fitted on %v", ErrFeatureMismatch, features, f.FeatureNames)
	}
	r, _ := x.Dims()
	out := make([]string, r)
	for i := 0; i < r; i++ {
		label, _, err := f.PredictRow(mat.Row(nil, i, x))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = label
	}
	return out, nil
}

// Score returns the accuracy of the forest on x, y.
func (f *Forest) Score(x mat.Matrix, y []string, features []string) (float64, error) {
	pred, err := f.Predict(x, features)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, fmt.Errorf("%d predictions for %d labels", len(pred), len(y))
	}
	if len(y) == 0 {
		return 0, errors.New("empty evaluation set")
	}
	hits := 0
	for i := range y {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(y)), nil
}

// TypeName returns the estimator name.
func (f *Forest) TypeName() string { return TypeName }

// ClassLabels returns the sorted class labels, aligned with probability vectors.
func (f *Forest) ClassLabels() []string { return f.Classes }

// Validate checks structural consistency of a loaded forest.
func (f *Forest) Validate() error {
	if len(f.Classes) == 0 {
		return errors.New("forest has no classes")
	}
	if len(f.FeatureNames) == 0 {
		return errors.New("forest has no features")
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.FeatureNames), len(f.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
