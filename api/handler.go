// Package api exposes the metadata catalog and the execution engine over
// HTTP: browse analysis concepts, register specs, and execute
// derivations and analyses against lake datasets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cdisc-org/analysis-concepts-sub000/catalog"
	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/engine"
)

// Handler serves the metadata and execution endpoints.
type Handler struct {
	store    *catalog.Store
	lake     *dataset.LakeReader
	engine   *engine.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler wires the handler. lake may be nil when no study data is
// attached; execution endpoints then respond 503.
func NewHandler(store *catalog.Store, lake *dataset.LakeReader, eng *engine.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		lake:     lake,
		engine:   eng,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// --- concepts ---

func (h *Handler) createConcept(w http.ResponseWriter, r *http.Request) {
	var c domain.AnalysisConcept
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, h.logger, domain.ErrValidation("decode concept: %v", err))
		return
	}
	if err := h.validate.Struct(c); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid concept: %v", err))
		return
	}
	if err := h.store.CreateConcept(r.Context(), c); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "id": c.ID})
}

func (h *Handler) getConcept(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetConcept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) listConcepts(w http.ResponseWriter, r *http.Request) {
	cs, err := h.store.ListConcepts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if cs == nil {
		cs = []domain.AnalysisConcept{}
	}
	writeJSON(w, http.StatusOK, cs)
}

// --- derivations ---

func (h *Handler) createDerivation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		domain.FormulaSpec
		Dataset string `json:"dataset" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("decode derivation: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid derivation: %v", err))
		return
	}
	if err := h.store.CreateDerivation(r.Context(), req.FormulaSpec); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.store.SetSpecDataset(r.Context(), req.ID, req.Dataset); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "id": req.ID})
}

func (h *Handler) listDerivations(w http.ResponseWriter, r *http.Request) {
	ds, err := h.store.ListDerivations(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ds == nil {
		ds = []domain.FormulaSpec{}
	}
	writeJSON(w, http.StatusOK, ds)
}

// executeRequest is the body of the execute endpoints: the slice to
// apply, as structured constraints.
type executeRequest struct {
	Slice domain.Slice `json:"slice" validate:"dive"`
}

// derivationResult reports one executed derivation: the concrete output
// column and its cells, missing cells as nulls.
type derivationResult struct {
	ID      string        `json:"id"`
	Dataset string        `json:"dataset"`
	Output  string        `json:"output"`
	Rows    int           `json:"rows"`
	Matched int           `json:"matched"`
	Values  []interface{} `json:"values"`
}

func (h *Handler) executeDerivation(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request: %v", err))
		return
	}

	result, err := h.runDerivation(r.Context(), chi.URLParam(r, "id"), req.Slice)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) runDerivation(ctx context.Context, id string, sl domain.Slice) (*derivationResult, error) {
	if h.lake == nil {
		return nil, errNoData
	}
	spec, err := h.store.GetDerivation(ctx, id)
	if err != nil {
		return nil, err
	}
	bindings, err := h.store.LoadBindingSet(ctx)
	if err != nil {
		return nil, err
	}
	dsName, err := bindings.DatasetFor(id)
	if err != nil {
		return nil, err
	}
	ds, err := h.lake.Read(ctx, dsName)
	if err != nil {
		return nil, err
	}
	chain := bindings.ChainFor(dsName, h.logger)

	out, err := h.engine.ExecuteDerivation(ctx, spec, sl, ds, chain)
	if err != nil {
		return nil, err
	}
	return summarizeDerivation(id, dsName, ds, out), nil
}

// summarizeDerivation reports the executed derivation: the output column
// is the one column the input did not have.
func summarizeDerivation(id, dsName string, in, out *dataset.Dataset) *derivationResult {
	outputName := ""
	for _, name := range out.ColumnNames() {
		if !in.HasColumn(name) {
			outputName = name
		}
	}
	col, _ := out.Column(outputName)
	values := make([]interface{}, out.Rows())
	matched := 0
	for i := 0; i < out.Rows(); i++ {
		values[i] = col.Value(i)
		if values[i] != nil {
			matched++
		}
	}
	return &derivationResult{
		ID:      id,
		Dataset: dsName,
		Output:  outputName,
		Rows:    out.Rows(),
		Matched: matched,
		Values:  values,
	}
}

// batchRequest executes several independent derivations against one
// dataset concurrently. Every listed derivation must be bound to the
// same dataset.
type batchRequest struct {
	Derivations []struct {
		ID    string       `json:"id" validate:"required"`
		Slice domain.Slice `json:"slice" validate:"dive"`
	} `json:"derivations" validate:"required,min=1,dive"`
}

func (h *Handler) executeBatch(w http.ResponseWriter, r *http.Request) {
	if h.lake == nil {
		writeError(w, h.logger, errNoData)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("decode request: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, domain.ErrValidation("invalid request: %v", err))
		return
	}

	ctx := r.Context()
	bindings, err := h.store.LoadBindingSet(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	dsName := ""
	reqs := make([]engine.DerivationRequest, 0, len(req.Derivations))
	for _, item := range req.Derivations {
		spec, err := h.store.GetDerivation(ctx, item.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		target, err := bindings.DatasetFor(item.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if dsName == "" {
			dsName = target
		} else if target != dsName {
			writeError(w, h.logger, domain.ErrSpecification(
				"batch mixes datasets %q and %q; derivations must share one dataset", dsName, target))
			return
		}
		reqs = append(reqs, engine.DerivationRequest{Spec: spec, Slice: item.Slice})
	}

	ds, err := h.lake.Read(ctx, dsName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	outs, err := h.engine.RunBatch(ctx, reqs, ds, bindings.ChainFor(dsName, h.logger))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	results := make([]*derivationResult, len(outs))
	for i, out := range outs {
		results[i] = summarizeDerivation(reqs[i].Spec.ID, dsName, ds, out)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// --- analyses ---

func (h *Handler) executeAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.lake == nil {
		writeError(w, h.logger, errNoData)
		return
	}
	var req executeRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	spec, err := h.store.GetAnalysis(ctx, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bindings, err := h.store.LoadBindingSet(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	dsName, err := bindings.DatasetFor(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ds, err := h.lake.Read(ctx, dsName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	cubes, err := h.engine.ExecuteAnalysis(ctx, spec, req.Slice, ds, bindings.ChainFor(dsName, h.logger))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cubes": cubes})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

var errNoData = errors.New("no study data attached")

// decodeOptionalBody decodes a JSON body when present; an empty body
// leaves the target at its zero value (an empty slice matches all rows).
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrValidation("decode request: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy to HTTP statuses. The body
// carries the structured message so a caller can locate the missing
// binding without source inspection.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	var unresolved *domain.UnresolvedSymbolError
	var mismatch *domain.SchemaMismatchError
	var emptySet *domain.EmptyAnalysisSetError
	var specErr *domain.SpecificationError
	var notFound *domain.NotFoundError
	var conflict *domain.ConflictError
	var invalid *domain.ValidationError

	switch {
	case errors.As(err, &unresolved), errors.As(err, &mismatch),
		errors.As(err, &emptySet), errors.As(err, &specErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.Is(err, errNoData):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]interface{}{"code": status, "message": err.Error()})
}
