// Package fitter provides a reference ModelFitter producing per-group
// descriptive estimates and pairwise mean differences. It stands in for
// the external statistical capability (least-squares means, mixed models)
// that a production deployment plugs in; it performs no inference.
package fitter

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

// Means fits per-factor-level summary statistics and pairwise contrasts.
type Means struct{}

// Fit groups the rows by the first factor of the model and produces two
// output groups: per-level estimates (n, mean, sd) and pairwise mean
// differences between levels. Rows with a missing dependent or factor
// cell are excluded, never defaulted. A model with no usable rows in some
// level still reports that level with n only.
func (Means) Fit(ctx context.Context, spec domain.ModelSpec, data *dataset.Dataset) (*domain.FitResult, error) {
	if len(spec.Factors) == 0 {
		return nil, fmt.Errorf("model %s: at least one factor is required for group means", spec.Formula())
	}
	factor := spec.Factors[0]

	dep, ok := data.Column(spec.Dependent)
	if !ok {
		return nil, fmt.Errorf("dependent column %q not in data", spec.Dependent)
	}
	if dep.Type != dataset.Float && dep.Type != dataset.Integer {
		return nil, fmt.Errorf("dependent column %q is %s, want numeric", spec.Dependent, dep.Type)
	}
	if _, ok := data.Column(factor); !ok {
		return nil, fmt.Errorf("factor column %q not in data", factor)
	}

	byLevel := make(map[string][]float64)
	for row := 0; row < data.Rows(); row++ {
		levelCell := data.Value(row, factor)
		depCell := data.Value(row, spec.Dependent)
		if levelCell == nil || depCell == nil {
			continue
		}
		level := fmt.Sprintf("%v", levelCell)
		byLevel[level] = append(byLevel[level], asFloat(depCell))
	}
	if len(byLevel) == 0 {
		return nil, fmt.Errorf("model %s: no usable rows", spec.Formula())
	}

	levels := make([]string, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	estimates := domain.FitGroup{
		Name:       "estimates",
		Dimensions: []string{factor},
		Measures:   []string{"n", "mean", "sd"},
	}
	for _, level := range levels {
		vals := byLevel[level]
		m := mean(vals)
		estimates.Rows = append(estimates.Rows, domain.CubeRow{
			Dims:     map[string]string{factor: level},
			Measures: map[string]float64{"n": float64(len(vals)), "mean": m, "sd": stddev(vals, m)},
		})
	}

	contrasts := domain.FitGroup{
		Name:       "contrasts",
		Dimensions: []string{factor, factor + "_ref"},
		Measures:   []string{"diff"},
	}
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			contrasts.Rows = append(contrasts.Rows, domain.CubeRow{
				Dims: map[string]string{factor: levels[i], factor + "_ref": levels[j]},
				Measures: map[string]float64{
					"diff": mean(byLevel[levels[i]]) - mean(byLevel[levels[j]]),
				},
			})
		}
	}

	return &domain.FitResult{Groups: []domain.FitGroup{estimates, contrasts}}, nil
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return math.NaN()
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the sample standard deviation; NaN for fewer than two values.
func stddev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	ss := 0.0
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}
