package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

// StudyMetadata is the declarative metadata for one study: the mapping
// tables plus the derivation and analysis specs bound to it.
type StudyMetadata struct {
	Concepts     []domain.ConceptBinding `yaml:"concepts"`
	Classes      []domain.ClassBinding   `yaml:"class_bindings"`
	SpecDatasets map[string]string       `yaml:"spec_datasets"`
	Derivations  []domain.FormulaSpec    `yaml:"derivations"`
	Analyses     []domain.AnalysisSpec   `yaml:"analyses"`
}

// yamlFiles lists the expected files in a study directory. Missing files
// are fine; partial metadata directories are allowed.
var yamlFiles = []string{
	"concepts.yaml",
	"class_bindings.yaml",
	"datasets.yaml",
	"derivations.yaml",
	"analyses.yaml",
}

// LoadDirectory reads a study metadata directory of YAML files into one
// StudyMetadata. Unknown fields are rejected so typos surface at load
// time rather than as unresolved symbols at execution time.
func LoadDirectory(dir string) (*StudyMetadata, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("metadata directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("metadata directory: %s is not a directory", dir)
	}

	meta := &StudyMetadata{SpecDatasets: map[string]string{}}
	for _, name := range yamlFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := decodeInto(meta, name, data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := meta.validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

func decodeInto(meta *StudyMetadata, name string, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	switch name {
	case "concepts.yaml":
		return dec.Decode(&meta.Concepts)
	case "class_bindings.yaml":
		return dec.Decode(&meta.Classes)
	case "datasets.yaml":
		return dec.Decode(&meta.SpecDatasets)
	case "derivations.yaml":
		return dec.Decode(&meta.Derivations)
	case "analyses.yaml":
		return dec.Decode(&meta.Analyses)
	}
	return fmt.Errorf("unknown metadata file %q", name)
}

// validate enforces the class-binding invariant: one class symbol never
// binds to two study variables within the same dataset.
func (m *StudyMetadata) validate() error {
	seen := make(map[string]string)
	for _, cb := range m.Classes {
		key := cb.Dataset + "\x00" + cb.ClassSymbol
		if prev, dup := seen[key]; dup && prev != cb.StudyVariable {
			return domain.ErrValidation(
				"class symbol %q bound to both %q and %q in dataset %q",
				cb.ClassSymbol, prev, cb.StudyVariable, cb.Dataset)
		}
		seen[key] = cb.StudyVariable
	}
	return nil
}

// BindingSet builds the in-memory binding snapshot without a store.
func (m *StudyMetadata) BindingSet() *BindingSet {
	return &BindingSet{
		Concepts:     m.Concepts,
		Classes:      m.Classes,
		SpecDatasets: m.SpecDatasets,
	}
}

// Ingest writes the study metadata into the store.
func (m *StudyMetadata) Ingest(ctx context.Context, store *Store) error {
	for _, c := range m.Concepts {
		if err := store.AddConceptBinding(ctx, c); err != nil {
			return err
		}
	}
	for _, cb := range m.Classes {
		if err := store.AddClassBinding(ctx, cb); err != nil {
			return err
		}
	}
	for id, ds := range m.SpecDatasets {
		if err := store.SetSpecDataset(ctx, id, ds); err != nil {
			return err
		}
	}
	for _, d := range m.Derivations {
		if err := store.CreateDerivation(ctx, d); err != nil {
			return err
		}
	}
	for _, a := range m.Analyses {
		if err := store.CreateAnalysis(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
