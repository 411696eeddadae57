// Package catalog persists the analysis metadata standard: concept and
// class binding tables, spec→dataset bindings, derivation and analysis
// specs, and browsable analysis-concept records. Backed by SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure (including primary keys).
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Store provides CRUD over the SQLite metadata store. Row order of the
// binding tables is preserved (rowid order), which matters for the
// first-occurrence-wins duplicate rule.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated SQLite connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// AddConceptBinding appends one concept binding in table order.
func (s *Store) AddConceptBinding(ctx context.Context, b domain.ConceptBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO concept_bindings (semantic_name, class_symbol) VALUES (?, ?)`,
		b.SemanticName, b.ClassSymbol)
	if err != nil {
		return fmt.Errorf("insert concept binding %q: %w", b.SemanticName, err)
	}
	return nil
}

// ListConceptBindings returns all concept bindings in table order.
func (s *Store) ListConceptBindings(ctx context.Context) ([]domain.ConceptBinding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT semantic_name, class_symbol FROM concept_bindings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list concept bindings: %w", err)
	}
	defer rows.Close()

	var out []domain.ConceptBinding
	for rows.Next() {
		var b domain.ConceptBinding
		if err := rows.Scan(&b.SemanticName, &b.ClassSymbol); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddClassBinding appends one class binding. The (class symbol, dataset)
// pair is unique: one symbol never binds to two variables in one dataset.
func (s *Store) AddClassBinding(ctx context.Context, b domain.ClassBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO class_bindings (class_symbol, dataset, study_variable) VALUES (?, ?, ?)`,
		b.ClassSymbol, b.Dataset, b.StudyVariable)
	if isUniqueViolation(err) {
		return domain.ErrConflict("class symbol %q already bound in dataset %q", b.ClassSymbol, b.Dataset)
	}
	if err != nil {
		return fmt.Errorf("insert class binding %q in %q: %w", b.ClassSymbol, b.Dataset, err)
	}
	return nil
}

// ListClassBindings returns all class bindings in table order.
func (s *Store) ListClassBindings(ctx context.Context) ([]domain.ClassBinding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT class_symbol, dataset, study_variable FROM class_bindings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list class bindings: %w", err)
	}
	defer rows.Close()

	var out []domain.ClassBinding
	for rows.Next() {
		var b domain.ClassBinding
		if err := rows.Scan(&b.ClassSymbol, &b.Dataset, &b.StudyVariable); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetSpecDataset binds a derivation or analysis ID to its target dataset.
func (s *Store) SetSpecDataset(ctx context.Context, specID, ds string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spec_datasets (spec_id, dataset) VALUES (?, ?)
		 ON CONFLICT (spec_id) DO UPDATE SET dataset = excluded.dataset`,
		specID, ds)
	if err != nil {
		return fmt.Errorf("bind spec %q to dataset %q: %w", specID, ds, err)
	}
	return nil
}

// SpecDataset returns the dataset a spec is bound to.
func (s *Store) SpecDataset(ctx context.Context, specID string) (string, error) {
	var ds string
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset FROM spec_datasets WHERE spec_id = ?`, specID).Scan(&ds)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound("spec %q has no dataset binding", specID)
	}
	if err != nil {
		return "", fmt.Errorf("dataset for spec %q: %w", specID, err)
	}
	return ds, nil
}

// CreateDerivation stores a derivation formula spec.
func (s *Store) CreateDerivation(ctx context.Context, f domain.FormulaSpec) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO derivations (id, output_name, expression) VALUES (?, ?, ?)`,
		f.ID, f.OutputName, f.Expression)
	if isUniqueViolation(err) {
		return domain.ErrConflict("derivation %q already exists", f.ID)
	}
	if err != nil {
		return fmt.Errorf("create derivation %q: %w", f.ID, err)
	}
	return nil
}

// GetDerivation returns the derivation spec with the given ID.
func (s *Store) GetDerivation(ctx context.Context, id string) (domain.FormulaSpec, error) {
	var f domain.FormulaSpec
	err := s.db.QueryRowContext(ctx,
		`SELECT id, output_name, expression FROM derivations WHERE id = ?`, id).
		Scan(&f.ID, &f.OutputName, &f.Expression)
	if err == sql.ErrNoRows {
		return f, domain.ErrNotFound("derivation %q not found", id)
	}
	if err != nil {
		return f, fmt.Errorf("get derivation %q: %w", id, err)
	}
	return f, nil
}

// ListDerivations returns all derivation specs ordered by ID.
func (s *Store) ListDerivations(ctx context.Context) ([]domain.FormulaSpec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, output_name, expression FROM derivations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list derivations: %w", err)
	}
	defer rows.Close()

	var out []domain.FormulaSpec
	for rows.Next() {
		var f domain.FormulaSpec
		if err := rows.Scan(&f.ID, &f.OutputName, &f.Expression); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateAnalysis stores an analysis spec and its role assignments in one
// transaction.
func (s *Store) CreateAnalysis(ctx context.Context, a domain.AnalysisSpec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create analysis %q: %w", a.ID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (id, name) VALUES (?, ?)`, a.ID, a.Name); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("analysis %q already exists", a.ID)
		}
		return fmt.Errorf("create analysis %q: %w", a.ID, err)
	}
	for _, r := range a.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_roles (analysis_id, variable, role) VALUES (?, ?, ?)`,
			a.ID, r.Variable, r.Role); err != nil {
			return fmt.Errorf("create analysis %q role %q: %w", a.ID, r.Variable, err)
		}
	}
	return tx.Commit()
}

// GetAnalysis returns the analysis spec with its roles in insertion order.
func (s *Store) GetAnalysis(ctx context.Context, id string) (domain.AnalysisSpec, error) {
	var a domain.AnalysisSpec
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM analyses WHERE id = ?`, id).Scan(&a.ID, &a.Name)
	if err == sql.ErrNoRows {
		return a, domain.ErrNotFound("analysis %q not found", id)
	}
	if err != nil {
		return a, fmt.Errorf("get analysis %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT variable, role FROM analysis_roles WHERE analysis_id = ? ORDER BY id`, id)
	if err != nil {
		return a, fmt.Errorf("roles for analysis %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r domain.RoleAssignment
		if err := rows.Scan(&r.Variable, &r.Role); err != nil {
			return a, err
		}
		a.Roles = append(a.Roles, r)
	}
	return a, rows.Err()
}

// CreateConcept stores a browsable analysis-concept record.
func (s *Store) CreateConcept(ctx context.Context, c domain.AnalysisConcept) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode concept %q: %w", c.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_concepts (id, name, payload) VALUES (?, ?, ?)`,
		c.ID, c.Name, string(payload))
	if isUniqueViolation(err) {
		return domain.ErrConflict("analysis concept %q already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("create concept %q: %w", c.ID, err)
	}
	return nil
}

// GetConcept returns the analysis-concept record with the given ID.
func (s *Store) GetConcept(ctx context.Context, id string) (domain.AnalysisConcept, error) {
	var c domain.AnalysisConcept
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_concepts WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return c, domain.ErrNotFound("analysis concept %q not found", id)
	}
	if err != nil {
		return c, fmt.Errorf("get concept %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, fmt.Errorf("decode concept %q: %w", id, err)
	}
	return c, nil
}

// ListConcepts returns all analysis-concept records ordered by ID.
func (s *Store) ListConcepts(ctx context.Context) ([]domain.AnalysisConcept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM analysis_concepts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisConcept
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var c domain.AnalysisConcept
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
