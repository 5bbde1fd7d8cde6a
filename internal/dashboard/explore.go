package dashboard

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/stat"

	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// Grid steps and the per-axis cap on explored values.
const (
	AgeStep    = 5
	IncomeStep = 5000
	MaxAxis    = 10
)

// Range is an inclusive interval.
type Range struct {
	Min int64
	Max int64
}

// ExploreOptions bounds the explored grid.
type ExploreOptions struct {
	Ages    Range
	Incomes Range
}

var validate = validator.New()

func init() {
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		o := sl.Current().Interface().(ExploreOptions)
		if o.Ages.Min < 18 || o.Ages.Max > 100 || o.Ages.Min > o.Ages.Max {
			sl.ReportError(o.Ages, "Ages", "Ages", "agerange", "")
		}
		if o.Incomes.Min < 20000 || o.Incomes.Max > 200000 || o.Incomes.Min > o.Incomes.Max {
			sl.ReportError(o.Incomes, "Incomes", "Incomes", "incomerange", "")
		}
	}, ExploreOptions{})
}

// DefaultExploreOptions covers ages 25-65 and incomes 30000-100000.
func DefaultExploreOptions() ExploreOptions {
	return ExploreOptions{
		Ages:    Range{Min: 25, Max: 65},
		Incomes: Range{Min: 30000, Max: 100000},
	}
}

// Validate checks ages lie in 18-100 and incomes in 20000-200000.
func (o ExploreOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid explore ranges (ages %d-%d, incomes %d-%d): %w",
			o.Ages.Min, o.Ages.Max, o.Incomes.Min, o.Incomes.Max, err)
	}
	return nil
}

// Steps returns r.Min, r.Min+step, ... up to r.Max, keeping at most limit values.
func Steps(r Range, step int64, limit int) []int64 {
	var out []int64
	for v := r.Min; v <= r.Max && len(out) < limit; v += step {
		out = append(out, v)
	}
	return out
}

// Predictor is the part of Client the explorer needs.
type Predictor interface {
	Predict(ctx context.Context, age, income int64) (*model.PredictionResponse, error)
}

// Explore predicts every (age, income) pair of the grid. Failed points are
// logged and skipped.
func Explore(ctx context.Context, p Predictor, opts ExploreOptions) ([]model.GridPoint, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ages := Steps(opts.Ages, AgeStep, MaxAxis)
	incomes := Steps(opts.Incomes, IncomeStep, MaxAxis)

	points := make([]model.GridPoint, 0, len(ages)*len(incomes))
	for _, a := range ages {
		for _, i := range incomes {
			if err := ctx.Err(); err != nil {
				return points, err
			}
			resp, err := p.Predict(ctx, a, i)
			if err != nil {
				output.Logger.Warn("Skipping grid point", "age", a, "income", i, "error", err)
				continue
			}
			points = append(points, model.GridPoint{
				Age:        a,
				Income:     i,
				Prediction: resp.Prediction,
				ProbYes:    resp.PredictionProba[model.LabelYes],
			})
		}
	}
	return points, nil
}

// shades maps probability deciles to characters, low to high.
const shades = " .:-=+*#%@"

// HeatMap writes a text heat map of mean prob_yes per (age, income) cell.
// Rows are ages, columns incomes; missing cells are blank.
func HeatMap(w io.Writer, points []model.GridPoint) error {
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "no predictions to plot")
		return err
	}

	type cell struct{ age, income int64 }
	values := make(map[cell][]float64)
	var ages, incomes []int64
	for _, p := range points {
		k := cell{p.Age, p.Income}
		values[k] = append(values[k], p.ProbYes)
		if !slices.Contains(ages, p.Age) {
			ages = append(ages, p.Age)
		}
		if !slices.Contains(incomes, p.Income) {
			incomes = append(incomes, p.Income)
		}
	}
	slices.Sort(ages)
	slices.Sort(incomes)

	var b strings.Builder
	b.WriteString("P(yes)  age \\ income\n")
	fmt.Fprintf(&b, "%6s", "")
	for _, i := range incomes {
		fmt.Fprintf(&b, " %7d", i)
	}
	b.WriteByte('\n')
	for _, a := range ages {
		fmt.Fprintf(&b, "%6d", a)
		for _, i := range incomes {
			v, ok := values[cell{a, i}]
			if !ok {
				fmt.Fprintf(&b, " %7s", "")
				continue
			}
			mean := stat.Mean(v, nil)
			fmt.Fprintf(&b, " %c%6.2f", shade(mean), mean)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func shade(p float64) byte {
	idx := int(p * float64(len(shades)))
	idx = max(0, min(idx, len(shades)-1))
	return shades[idx]
}
