package catalog

import (
	"context"
	"log/slog"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

// BindingSet is one loaded snapshot of the three mapping layers:
// concept → class symbol, class symbol → study variable (per dataset),
// and spec → dataset. Read-only for the duration of an execution.
type BindingSet struct {
	Concepts     []domain.ConceptBinding
	Classes      []domain.ClassBinding
	SpecDatasets map[string]string
}

// LoadBindingSet reads the full mapping state from the store, preserving
// table order.
func (s *Store) LoadBindingSet(ctx context.Context) (*BindingSet, error) {
	concepts, err := s.ListConceptBindings(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := s.ListClassBindings(ctx)
	if err != nil {
		return nil, err
	}
	specRows, err := s.db.QueryContext(ctx, `SELECT spec_id, dataset FROM spec_datasets`)
	if err != nil {
		return nil, err
	}
	defer specRows.Close()

	specDatasets := make(map[string]string)
	for specRows.Next() {
		var id, ds string
		if err := specRows.Scan(&id, &ds); err != nil {
			return nil, err
		}
		specDatasets[id] = ds
	}
	if err := specRows.Err(); err != nil {
		return nil, err
	}

	return &BindingSet{Concepts: concepts, Classes: classes, SpecDatasets: specDatasets}, nil
}

// DatasetFor returns the dataset a derivation or analysis is bound to.
func (b *BindingSet) DatasetFor(specID string) (string, error) {
	ds, ok := b.SpecDatasets[specID]
	if !ok {
		return "", domain.ErrNotFound("spec %q has no dataset binding", specID)
	}
	return ds, nil
}

// ChainFor builds the resolution chain for one target dataset: the
// concept layer followed by that dataset's class layer. Duplicate keys
// keep their first occurrence; conflicts are logged on logger.
func (b *BindingSet) ChainFor(ds string, logger *slog.Logger) *resolver.Chain {
	var classes []domain.ClassBinding
	for _, cb := range b.Classes {
		if cb.Dataset == ds {
			classes = append(classes, cb)
		}
	}
	return resolver.NewChain(
		resolver.NewConceptLayer("concepts", b.Concepts, logger),
		resolver.NewClassLayer("class:"+ds, classes, logger),
	)
}
