// Package resolver implements layered symbol resolution: semantic concept
// names resolve through ordered binding tables down to concrete study
// variable names. Lookup is always by exact, whole-identifier match.
package resolver

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

// Layer is one ordered binding table in a resolution chain. Entries keep
// table order; when the same key is bound twice, the first occurrence wins
// and the conflict is logged at construction time.
type Layer struct {
	name     string
	entries  map[string]string
	targets  map[string]bool
	conflict []string
}

// NewLayer builds a layer from ordered (key, value) pairs. pairs must have
// even length; it is laid out key0, value0, key1, value1, ...
func NewLayer(name string, logger *slog.Logger, pairs ...string) *Layer {
	l := &Layer{
		name:    name,
		entries: make(map[string]string, len(pairs)/2),
		targets: make(map[string]bool, len(pairs)/2),
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		l.add(logger, pairs[i], pairs[i+1])
	}
	return l
}

// NewConceptLayer builds a layer from concept bindings in table order.
func NewConceptLayer(name string, bindings []domain.ConceptBinding, logger *slog.Logger) *Layer {
	l := &Layer{
		name:    name,
		entries: make(map[string]string, len(bindings)),
		targets: make(map[string]bool, len(bindings)),
	}
	for _, b := range bindings {
		l.add(logger, b.SemanticName, b.ClassSymbol)
	}
	return l
}

// NewClassLayer builds a layer from the class bindings of one dataset,
// in table order.
func NewClassLayer(name string, bindings []domain.ClassBinding, logger *slog.Logger) *Layer {
	l := &Layer{
		name:    name,
		entries: make(map[string]string, len(bindings)),
		targets: make(map[string]bool, len(bindings)),
	}
	for _, b := range bindings {
		l.add(logger, b.ClassSymbol, b.StudyVariable)
	}
	return l
}

func (l *Layer) add(logger *slog.Logger, key, value string) {
	if prev, dup := l.entries[key]; dup {
		// First occurrence in table order wins. The adjudication rule for
		// duplicate bindings is unresolved upstream, so the conflict is
		// surfaced rather than silently dropped.
		l.conflict = append(l.conflict, key)
		if logger != nil {
			logger.Warn("duplicate binding, first occurrence wins",
				"layer", l.name, "key", key, "kept", prev, "ignored", value)
		}
		return
	}
	l.entries[key] = value
	l.targets[value] = true
}

// Name returns the layer name used in error and conflict reporting.
func (l *Layer) Name() string { return l.name }

// Conflicts returns the keys that were bound more than once, in the order
// the duplicates were encountered.
func (l *Layer) Conflicts() []string { return l.conflict }

// Lookup returns the bound value for key, if present.
func (l *Layer) Lookup(key string) (string, bool) {
	v, ok := l.entries[key]
	return v, ok
}

// HasTarget reports whether name appears as a resolution target in this
// layer. A token equal to its own final resolution is already concrete.
func (l *Layer) HasTarget(name string) bool { return l.targets[name] }

// Chain is an ordered list of layers. Resolution walks the layers in
// order, substituting the token with its bound value at each layer where
// it is found; the substituted value is the lookup key for the next layer.
type Chain struct {
	layers []*Layer
}

// NewChain creates a resolution chain over the given layers, outermost
// (most semantic) first.
func NewChain(layers ...*Layer) *Chain {
	return &Chain{layers: layers}
}

// Layers returns the chain's layers in resolution order.
func (c *Chain) Layers() []*Layer { return c.layers }

// Resolve maps a token to its concrete name through the chain. Numeric
// and quoted-string literals pass through untouched. A token found in no
// layer resolves only if it already equals a known final-layer target;
// otherwise resolution fails with an UnresolvedSymbolError.
func (c *Chain) Resolve(token string) (string, error) {
	return c.resolve(token, "")
}

// ResolveIn is Resolve with a context label (formula or slice name)
// carried into any resulting error.
func (c *Chain) ResolveIn(token, context string) (string, error) {
	return c.resolve(token, context)
}

func (c *Chain) resolve(token, context string) (string, error) {
	if IsLiteral(token) {
		return token, nil
	}

	current := token
	matched := false
	lastLayer := ""
	for _, l := range c.layers {
		lastLayer = l.name
		if next, ok := l.Lookup(current); ok {
			current = next
			matched = true
		}
	}
	if matched {
		return current, nil
	}

	// Not a key anywhere. Accept it only when it is already a concrete
	// name, i.e. it appears as a target of the final layer.
	if n := len(c.layers); n > 0 && c.layers[n-1].HasTarget(token) {
		return token, nil
	}
	return "", domain.ErrUnresolved(token, lastLayer, context)
}

// IsLiteral reports whether a token is a numeric constant or quoted
// string, which never require resolution.
func IsLiteral(token string) bool {
	if token == "" {
		return false
	}
	if len(token) >= 2 {
		if (strings.HasPrefix(token, `"`) && strings.HasSuffix(token, `"`)) ||
			(strings.HasPrefix(token, `'`) && strings.HasSuffix(token, `'`)) {
			return true
		}
	}
	if _, err := strconv.ParseFloat(token, 64); err == nil {
		return true
	}
	return false
}
