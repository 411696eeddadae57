// Package engine executes resolved derivations and analyses over study
// datasets. One execution is synchronous and pure over read-only inputs;
// the only mutation is the creation of a new output column or cube set,
// which the caller owns once returned.
package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

// ModelFitter is the external statistical capability an analysis
// delegates to. It receives a fully resolved model specification and the
// slice-filtered rows, and returns grouped estimates. Fitting failures
// (e.g. a singular model) are returned as errors, never suppressed.
type ModelFitter interface {
	Fit(ctx context.Context, spec domain.ModelSpec, data *dataset.Dataset) (*domain.FitResult, error)
}

// Engine runs derivations and analyses. It holds no per-execution state;
// independent executions may run concurrently.
type Engine struct {
	fitter ModelFitter
	logger *slog.Logger
}

// New creates an Engine. fitter may be nil when only derivations are
// executed; logger may be nil to disable logging.
func New(fitter ModelFitter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{fitter: fitter, logger: logger}
}

// DerivationRequest pairs a formula spec with its slice for batch runs.
type DerivationRequest struct {
	Spec  domain.FormulaSpec
	Slice domain.Slice
}

// RunBatch executes several independent derivations against the same
// dataset concurrently. Each result is a separate dataset sharing the
// original columns. The first failure cancels the batch.
func (e *Engine) RunBatch(ctx context.Context, reqs []DerivationRequest, ds *dataset.Dataset, chain *resolver.Chain) ([]*dataset.Dataset, error) {
	results := make([]*dataset.Dataset, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			out, err := e.ExecuteDerivation(ctx, req.Spec, req.Slice, ds, chain)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
