package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
	"github.com/cdisc-org/analysis-concepts-sub000/slice"
)

// ExecuteAnalysis resolves the role-tagged variable list and the slice,
// filters the dataset to matched rows, delegates fitting to the external
// model capability, and packages each fit output group into one
// OutputCube. The slice's fixed attributes are stamped on every cube for
// traceability.
func (e *Engine) ExecuteAnalysis(ctx context.Context, spec domain.AnalysisSpec, sl domain.Slice, ds *dataset.Dataset, chain *resolver.Chain) ([]domain.OutputCube, error) {
	if e.fitter == nil {
		return nil, domain.ErrSpecification("analysis %q: no model fitter configured", spec.ID)
	}

	model, err := resolveRoles(spec, chain, ds)
	if err != nil {
		return nil, err
	}

	pred, err := slice.Build(sl, chain, ds)
	if err != nil {
		return nil, err
	}
	matched, err := slice.Matched(pred, ds)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, domain.ErrEmptyAnalysisSet(spec.ID, ds.Name())
	}

	filtered, err := ds.Select(matched)
	if err != nil {
		return nil, err
	}

	fit, err := e.fitter.Fit(ctx, model, filtered)
	if err != nil {
		return nil, fmt.Errorf("analysis %q: model fit: %w", spec.ID, err)
	}

	executionID := uuid.NewString()
	attrs := make([]domain.Attribute, len(sl))
	for i, c := range sl {
		attrs[i] = domain.Attribute{Name: c.Attribute, Value: c.Value}
	}

	cubes := make([]domain.OutputCube, len(fit.Groups))
	for i, g := range fit.Groups {
		cubes[i] = domain.OutputCube{
			Name:        g.Name,
			ExecutionID: executionID,
			Dimensions:  g.Dimensions,
			Measures:    g.Measures,
			Attributes:  attrs,
			Rows:        g.Rows,
		}
	}

	e.logger.Info("analysis executed",
		"analysis", spec.ID,
		"model", model.Formula(),
		"matched", len(matched),
		"cubes", len(cubes),
		"execution_id", executionID)
	return cubes, nil
}

// resolveRoles maps the role assignments to concrete columns and
// assembles the model specification. Exactly one dependent variable is
// required; every resolved variable must exist in the dataset schema.
func resolveRoles(spec domain.AnalysisSpec, chain *resolver.Chain, ds *dataset.Dataset) (domain.ModelSpec, error) {
	var model domain.ModelSpec
	errCtx := fmt.Sprintf("analysis %q", spec.ID)

	for _, ra := range spec.Roles {
		concrete, err := chain.ResolveIn(ra.Variable, errCtx)
		if err != nil {
			return domain.ModelSpec{}, err
		}
		if !ds.HasColumn(concrete) {
			return domain.ModelSpec{}, domain.ErrSchemaMismatch(concrete, ds.Name())
		}
		switch ra.Role {
		case domain.RoleDependent:
			if model.Dependent != "" {
				return domain.ModelSpec{}, domain.ErrSpecification("analysis %q: more than one dependent variable", spec.ID)
			}
			model.Dependent = concrete
		case domain.RoleCovariate:
			model.Covariates = append(model.Covariates, concrete)
		case domain.RoleFactor:
			model.Factors = append(model.Factors, concrete)
		case domain.RoleIdentifier:
			model.Identifiers = append(model.Identifiers, concrete)
		default:
			return domain.ModelSpec{}, domain.ErrSpecification("analysis %q: unknown role %q for %q", spec.ID, ra.Role, ra.Variable)
		}
	}

	if model.Dependent == "" {
		return domain.ModelSpec{}, domain.ErrSpecification("analysis %q: no dependent variable assigned", spec.ID)
	}
	return model, nil
}
