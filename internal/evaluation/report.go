// Package evaluation computes classification metrics for the evaluate stage.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/daryltucker/subscription-runner/internal/model"
)

// ClassReport holds unrounded metrics for one label.
type ClassReport struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a classification report: per-label metrics over the sorted union
// of true and predicted labels plus support-weighted averages.
type Report struct {
	Labels   []string
	Classes  map[string]ClassReport
	Accuracy float64
	Weighted ClassReport
}

// Classify builds a Report. Precision or recall with a zero denominator is 0.
func Classify(yTrue, yPred []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, errors.New("no samples to evaluate")
	}

	labels := slices.Concat(yTrue, yPred)
	slices.Sort(labels)
	labels = slices.Compact(labels)

	tp := make(map[string]float64, len(labels))
	predicted := make(map[string]float64, len(labels))
	support := make(map[string]int, len(labels))
	hits := 0
	for i := range yTrue {
		support[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
			hits++
		}
	}

	r := &Report{
		Labels:   labels,
		Classes:  make(map[string]ClassReport, len(labels)),
		Accuracy: float64(hits) / float64(len(yTrue)),
	}

	precision := make([]float64, len(labels))
	recall := make([]float64, len(labels))
	f1 := make([]float64, len(labels))
	weights := make([]float64, len(labels))
	for i, l := range labels {
		precision[i] = safeDiv(tp[l], predicted[l])
		recall[i] = safeDiv(tp[l], float64(support[l]))
		f1[i] = safeDiv(2*precision[i]*recall[i], precision[i]+recall[i])
		weights[i] = float64(support[l])
		r.Classes[l] = ClassReport{
			Precision: precision[i],
			Recall:    recall[i],
			F1:        f1[i],
			Support:   support[l],
		}
	}

	total := floats.Sum(weights)
	r.Weighted = ClassReport{
		Precision: floats.Dot(precision, weights) / total,
		Recall:    floats.Dot(recall, weights) / total,
		F1:        floats.Dot(f1, weights) / total,
		Support:   len(yTrue),
	}
	return r, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Round4 rounds to 4 decimals, ties to even.
func Round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}

// ToModel converts the report into the persisted, rounded form. Every label
// seen in the data gets a class_metrics entry; the two known labels are always
// present so consumers can index them unconditionally.
func (r *Report) ToModel() model.EvaluationReport {
	out := model.EvaluationReport{
		Accuracy:     Round4(r.Accuracy),
		Precision:    Round4(r.Weighted.Precision),
		Recall:       Round4(r.Weighted.Recall),
		F1Score:      Round4(r.Weighted.F1),
		Support:      r.Weighted.Support,
		ClassMetrics: make(map[string]model.ClassMetrics, len(r.Labels)),
	}
	for _, l := range []string{model.LabelNo, model.LabelYes} {
		out.ClassMetrics[l] = model.ClassMetrics{}
	}
	for l, c := range r.Classes {
		out.ClassMetrics[l] = model.ClassMetrics{
			Precision: Round4(c.Precision),
			Recall:    Round4(c.Recall),
			F1Score:   Round4(c.F1),
			Support:   c.Support,
		}
	}
	return out
}

// TrackedMetrics returns the values logged against the training run.
func TrackedMetrics(r model.EvaluationReport) map[string]float64 {
	return map[string]float64{
		"test_accuracy":  r.Accuracy,
		"test_precision": r.Precision,
		"test_recall":    r.Recall,
		"test_f1_score":  r.F1Score,
	}
}
