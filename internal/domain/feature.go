package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FeatureName is a classification dimension requested from the provider.
type FeatureName string

// Supported features.
const (
	FeatureCategory FeatureName = "category"
	FeatureKeyword  FeatureName = "keyword"
	FeatureConcept  FeatureName = "concept"
	FeatureEntity   FeatureName = "entity"
)

// AllFeatures lists every feature in request order.
var AllFeatures = []FeatureName{FeatureCategory, FeatureKeyword, FeatureConcept, FeatureEntity}

// wireKeys maps a feature to the key used in request features and response bodies.
var wireKeys = map[FeatureName]string{
	FeatureCategory: "categories",
	FeatureKeyword:  "keywords",
	FeatureConcept:  "concepts",
	FeatureEntity:   "entities",
}

// WireKey returns the plural key the provider uses for f.
func (f FeatureName) WireKey() string {
	return wireKeys[f]
}

// Valid reports whether f is a known feature.
func (f FeatureName) Valid() bool {
	_, ok := wireKeys[f]
	return ok
}

// ParseFeatureName accepts either the singular name or the provider's plural key.
func ParseFeatureName(s string) (FeatureName, error) {
	for f, key := range wireKeys {
		if s == string(f) || s == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// DefaultThreshold is the score percentage a label must reach when none is configured.
const DefaultThreshold = 70.0

// FeatureOptions are the per-feature parameters sent to the provider.
// Zero values are omitted so flag-only features serialize as {}.
type FeatureOptions struct {
	Limit     int  `json:"limit,omitempty"     yaml:"limit,omitempty"`
	Sentiment bool `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	Emotion   bool `json:"emotion,omitempty"   yaml:"emotion,omitempty"`
}

// FeatureConfig is the persisted per-feature setting.
type FeatureConfig struct {
	Feature   FeatureName    `json:"feature"`
	Enabled   bool           `json:"enabled"`
	Threshold float64        `json:"threshold"` // 0..100
	Taxonomy  string         `json:"taxonomy"`
	Options   FeatureOptions `json:"options"`
}

// Validate checks the threshold range and the feature name.
func (c FeatureConfig) Validate() error {
	if !c.Feature.Valid() {
		return fmt.Errorf("%w: unknown feature %q", ErrInvalidSettings, c.Feature)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("%w: threshold %.2f outside 0..100", ErrInvalidSettings, c.Threshold)
	}
	if c.Taxonomy == "" {
		return fmt.Errorf("%w: taxonomy is required", ErrInvalidSettings)
	}
	return nil
}

// AnalysisOptions describe one analysis request.
type AnalysisOptions struct {
	Language string
	Timeout  time.Duration
	Features map[FeatureName]FeatureOptions
}

// DefaultLanguage and DefaultTimeout apply when options leave them empty.
const (
	DefaultLanguage = "en"
	DefaultTimeout  = 60 * time.Second
)

// WithDefaults fills empty language and timeout.
func (o AnalysisOptions) WithDefaults() AnalysisOptions {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// FeaturesPayload renders the request "features" object keyed by wire key.
func (o AnalysisOptions) FeaturesPayload() map[string]FeatureOptions {
	out := make(map[string]FeatureOptions, len(o.Features))
	for f, opts := range o.Features {
		out[f.WireKey()] = opts
	}
	return out
}

// ScoredLabel is one candidate tag returned by the provider.
type ScoredLabel struct {
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
	Type        string  `json:"type,omitempty"`
	Canonical   string  `json:"canonical,omitempty"`
	ResourceURI string  `json:"resource_uri,omitempty"`
}

// wireLabel is the provider's label shape. Categories use label/score,
// keywords and entities use text/relevance, concepts use text/relevance
// plus dbpedia_resource.
type wireLabel struct {
	Label           string   `json:"label"`
	Text            string   `json:"text"`
	Score           *float64 `json:"score"`
	Relevance       *float64 `json:"relevance"`
	Type            string   `json:"type"`
	DBpediaResource string   `json:"dbpedia_resource"`
	Disambiguation  *struct {
		Name            string `json:"name"`
		DBpediaResource string `json:"dbpedia_resource"`
	} `json:"disambiguation"`
}

// UnmarshalJSON normalizes label/text and score/relevance into one shape.
func (l *ScoredLabel) UnmarshalJSON(data []byte) error {
	var w wireLabel
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*l = ScoredLabel{Text: w.Label, Type: w.Type, ResourceURI: w.DBpediaResource}
	if l.Text == "" {
		l.Text = w.Text
	}
	switch {
	case w.Score != nil:
		l.Score = *w.Score
	case w.Relevance != nil:
		l.Score = *w.Relevance
	}
	if w.Disambiguation != nil {
		l.Canonical = w.Disambiguation.Name
		if w.Disambiguation.DBpediaResource != "" {
			l.ResourceURI = w.Disambiguation.DBpediaResource
		}
	}
	return nil
}

// AnalysisResponse is the parsed provider response. Raw keeps the verbatim
// body for the diagnostics slot and is never authoritative.
type AnalysisResponse struct {
	Language string
	Features map[FeatureName][]ScoredLabel
	Raw      json.RawMessage
}

// Labels returns the labels for f, or nil when the provider returned none.
func (r *AnalysisResponse) Labels(f FeatureName) []ScoredLabel {
	if r == nil {
		return nil
	}
	return r.Features[f]
}
