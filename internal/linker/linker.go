// Package linker turns an analysis response into term associations.
package linker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
	"github.com/jonesrussell/north-cloud/autotagger/internal/telemetry"
)

// categorySeparator splits hierarchical category labels.
const categorySeparator = "/"

// scoreEpsilon absorbs float error from scaling 0..1 scores to percentages,
// e.g. 0.57*100 == 56.99999999999999.
const scoreEpsilon = 1e-9

// ErrSharedTaxonomy marks a feature whose taxonomy was not written because
// another feature linking into the same taxonomy failed.
var ErrSharedTaxonomy = errors.New("taxonomy shared with a failed feature")

// TermStore is the persistence the linker writes through.
type TermStore interface {
	FindOrCreate(ctx context.Context, taxonomy, name string, meta domain.TermMeta) (domain.Term, error)
	SetTermAssociations(ctx context.Context, contentID, taxonomy string, termIDs []int64) error
}

// ResultLinker links analysis labels to terms.
type ResultLinker struct {
	store     TermStore
	log       logger.Logger
	telemetry *telemetry.Provider
}

// New creates a ResultLinker. tp may be nil.
func New(store TermStore, log logger.Logger, tp *telemetry.Provider) *ResultLinker {
	if log == nil {
		log = logger.NewNop()
	}
	return &ResultLinker{store: store, log: log, telemetry: tp}
}

// Candidate is a term name derived from a label.
type Candidate struct {
	Name string
	Meta domain.TermMeta
}

// Link replaces the item's associations in each enabled feature's taxonomy
// with the terms derived from resp. Features sharing a taxonomy are written
// together as one set. A failure in one taxonomy is recorded on the results
// of its features and does not stop the others.
func (l *ResultLinker) Link(
	ctx context.Context,
	item domain.ContentItem,
	resp *domain.AnalysisResponse,
	configs map[domain.FeatureName]domain.FeatureConfig,
	policy tagfilter.Policy,
) domain.LinkResult {
	result := domain.LinkResult{
		ContentID:  item.ID,
		PerFeature: make(map[domain.FeatureName]domain.FeatureLinkResult, len(configs)),
	}

	var order []string
	groups := make(map[string][]domain.FeatureName)
	for _, f := range domain.AllFeatures {
		cfg, ok := configs[f]
		if !ok || !cfg.Enabled {
			continue
		}

		candidates := Candidates(f, resp.Labels(f), cfg.Threshold, policy)
		result.PerFeature[f] = l.resolve(ctx, cfg, candidates)

		if _, seen := groups[cfg.Taxonomy]; !seen {
			order = append(order, cfg.Taxonomy)
		}
		groups[cfg.Taxonomy] = append(groups[cfg.Taxonomy], f)
	}

	for _, tax := range order {
		l.replace(ctx, item.ID, tax, groups[tax], configs, &result)
	}

	for _, f := range domain.AllFeatures {
		fr, ok := result.PerFeature[f]
		if !ok {
			continue
		}
		l.telemetry.RecordLink(ctx, string(f), len(fr.Terms), fr.Err != nil)
		if fr.Err != nil {
			l.log.Error("Feature linking failed",
				logger.ContentID(item.ID),
				logger.Feature(string(f)),
				logger.String("taxonomy", fr.Taxonomy),
				logger.Error(fr.Err),
			)
			continue
		}
		l.log.Debug("Feature linked",
			logger.ContentID(item.ID),
			logger.Feature(string(f)),
			logger.Int("terms", len(fr.Terms)),
		)
	}

	return result
}

// resolve finds or creates the terms for one feature's candidates.
func (l *ResultLinker) resolve(
	ctx context.Context, cfg domain.FeatureConfig, candidates []Candidate,
) domain.FeatureLinkResult {
	fr := domain.FeatureLinkResult{Taxonomy: cfg.Taxonomy, Terms: make([]domain.Term, 0, len(candidates))}
	for _, c := range candidates {
		term, err := l.store.FindOrCreate(ctx, cfg.Taxonomy, c.Name, c.Meta)
		if err != nil {
			return failed(cfg, err)
		}
		fr.Terms = append(fr.Terms, term)
	}
	return fr
}

// replace writes the union of the features' terms as the taxonomy's set.
// The set is left untouched when any feature sharing it failed to resolve.
func (l *ResultLinker) replace(
	ctx context.Context,
	contentID, tax string,
	features []domain.FeatureName,
	configs map[domain.FeatureName]domain.FeatureConfig,
	result *domain.LinkResult,
) {
	var ids []int64
	seen := make(map[int64]struct{})
	var blocked domain.FeatureName
	for _, f := range features {
		fr := result.PerFeature[f]
		if fr.Err != nil {
			blocked = f
			break
		}
		for _, term := range fr.Terms {
			if _, dup := seen[term.ID]; dup {
				continue
			}
			seen[term.ID] = struct{}{}
			ids = append(ids, term.ID)
		}
	}

	if blocked != "" {
		for _, f := range features {
			if result.PerFeature[f].Err == nil {
				result.PerFeature[f] = failed(configs[f], fmt.Errorf("%w: %s", ErrSharedTaxonomy, blocked))
			}
		}
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	if err := l.store.SetTermAssociations(ctx, contentID, tax, ids); err != nil {
		for _, f := range features {
			result.PerFeature[f] = failed(configs[f], err)
		}
	}
}

func failed(cfg domain.FeatureConfig, err error) domain.FeatureLinkResult {
	return domain.FeatureLinkResult{
		Taxonomy: cfg.Taxonomy,
		Err:      &domain.LinkingError{Feature: cfg.Feature, Taxonomy: cfg.Taxonomy, Err: err},
	}
}

// Candidates returns the de-duplicated term names a feature's labels yield
// after threshold and tag filtering, in response order.
func Candidates(f domain.FeatureName, labels []domain.ScoredLabel, threshold float64, policy tagfilter.Policy) []Candidate {
	out := make([]Candidate, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))

	add := func(name string, meta domain.TermMeta) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		if !tagfilter.CanUseTag(policy, name) {
			return
		}
		seen[name] = struct{}{}
		out = append(out, Candidate{Name: name, Meta: meta})
	}

	for _, label := range labels {
		if !MeetsThreshold(label.Score, threshold) {
			continue
		}
		switch f {
		case domain.FeatureCategory:
			for _, segment := range strings.Split(label.Text, categorySeparator) {
				add(segment, domain.TermMeta{})
			}
		case domain.FeatureEntity:
			name := label.Text
			if label.Canonical != "" {
				name = label.Canonical
			}
			add(name, domain.TermMeta{Canonical: label.Canonical, ResourceURI: label.ResourceURI})
		default:
			add(label.Text, domain.TermMeta{Canonical: label.Canonical, ResourceURI: label.ResourceURI})
		}
	}
	return out
}

// MeetsThreshold compares a 0..1 score against a 0..100 threshold, inclusive.
func MeetsThreshold(score, threshold float64) bool {
	if math.IsNaN(score) {
		return false
	}
	return score*100 >= threshold-scoreEpsilon
}
