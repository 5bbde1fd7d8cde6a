package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Frame is a numeric feature matrix with its target column.
type Frame struct {
	Features []string
	X        *mat.Dense
	Y        []string
}

// Rows returns the number of samples.
func (f *Frame) Rows() int { return len(f.Y) }

// Frame builds a Frame from t using target as the label column and every
// other column except the dropped ones as float64 features, in header order.
func (t *Table) Frame(target string, drop ...string) (*Frame, error) {
	ti := t.Index(target)
	if ti < 0 {
		return nil, fmt.Errorf("target column %q not found", target)
	}

	var cols []int
	var names []string
	for i, name := range t.Header {
		if i == ti || slices.Contains(drop, name) {
			continue
		}
		cols = append(cols, i)
		names = append(names, name)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no feature columns left after dropping %q and %v", target, drop)
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}

	x := mat.NewDense(len(t.Rows), len(cols), nil)
	y := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		for c, idx := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r+1, names[c], err)
			}
			x.Set(r, c, v)
		}
		label := strings.TrimSpace(row[ti])
		if IsNull(label) {
			return nil, fmt.Errorf("row %d: missing %q", r+1, target)
		}
		y[r] = label
	}
	return &Frame{Features: names, X: x, Y: y}, nil
}

// Subset returns the rows at idx, in order.
func (f *Frame) Subset(idx []int) *Frame {
	_, c := f.X.Dims()
	x := mat.NewDense(len(idx), c, nil)
	y := make([]string, len(idx))
	for i, r := range idx {
		x.SetRow(i, f.X.RawRowView(r))
		y[i] = f.Y[r]
	}
	return &Frame{Features: slices.Clone(f.Features), X: x, Y: y}
}

// TrainTestSplit shuffles row indices with a seeded generator and holds out
// ceil(testSize*n) rows. The same seed always yields the same partitions.
func (f *Frame) TrainTestSplit(testSize float64, seed uint64) (train, test *Frame, err error) {
	n := f.Rows()
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %v must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return f.Subset(perm[nTest:]), f.Subset(perm[:nTest]), nil
}
