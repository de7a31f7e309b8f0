// Package taxonomy describes the classification dimensions terms are filed under.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// Taxonomy is a named classification dimension.
type Taxonomy struct {
	Name          string
	LabelSingular string
	LabelPlural   string
	// Visible decides whether collaborators show the taxonomy. Nil means visible.
	Visible func() bool
}

// IsVisible evaluates the visibility predicate.
func (t Taxonomy) IsVisible() bool {
	return t.Visible == nil || t.Visible()
}

// Factory builds the taxonomy for a feature.
type Factory func() Taxonomy

// Registry maps features to taxonomy factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.FeatureName]Factory
}

// NewRegistry returns a registry preloaded with the default taxonomies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[domain.FeatureName]Factory, len(defaults))}
	for f, factory := range defaults {
		r.factories[f] = factory
	}
	return r
}

var defaults = map[domain.FeatureName]Factory{
	domain.FeatureCategory: func() Taxonomy {
		return Taxonomy{Name: "nlu_category", LabelSingular: "Category", LabelPlural: "Categories"}
	},
	domain.FeatureKeyword: func() Taxonomy {
		return Taxonomy{Name: "nlu_keyword", LabelSingular: "Keyword", LabelPlural: "Keywords"}
	},
	domain.FeatureConcept: func() Taxonomy {
		return Taxonomy{Name: "nlu_concept", LabelSingular: "Concept", LabelPlural: "Concepts"}
	},
	domain.FeatureEntity: func() Taxonomy {
		return Taxonomy{Name: "nlu_entity", LabelSingular: "Entity", LabelPlural: "Entities"}
	},
}

// Register replaces the factory for a feature.
func (r *Registry) Register(f domain.FeatureName, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f] = factory
}

// For returns the taxonomy for a feature.
func (r *Registry) For(f domain.FeatureName) (Taxonomy, error) {
	r.mu.RLock()
	factory, ok := r.factories[f]
	r.mu.RUnlock()
	if !ok {
		return Taxonomy{}, fmt.Errorf("no taxonomy registered for feature %q", f)
	}
	return factory(), nil
}

// DefaultName returns the taxonomy name for a feature, or "" when none is registered.
func (r *Registry) DefaultName(f domain.FeatureName) string {
	t, err := r.For(f)
	if err != nil {
		return ""
	}
	return t.Name
}

// All returns every registered taxonomy sorted by name.
func (r *Registry) All() []Taxonomy {
	r.mu.RLock()
	out := make([]Taxonomy, 0, len(r.factories))
	for _, factory := range r.factories {
		out = append(out, factory())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Slug derives a term's unique key from its name: diacritics removed,
// lower-cased, runs of non-alphanumerics collapsed to "-".
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
