package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

func TestScoredLabel_UnmarshalNormalizesFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  domain.ScoredLabel
	}{
		{
			name:  "category label with score",
			input: `{"score":0.99,"label":"/animals/mammals"}`,
			want:  domain.ScoredLabel{Text: "/animals/mammals", Score: 0.99},
		},
		{
			name:  "keyword text with relevance",
			input: `{"relevance":0.95,"text":"fox"}`,
			want:  domain.ScoredLabel{Text: "fox", Score: 0.95},
		},
		{
			name:  "concept with dbpedia resource",
			input: `{"text":"Fox","relevance":0.8,"dbpedia_resource":"http://dbpedia.org/resource/Fox"}`,
			want:  domain.ScoredLabel{Text: "Fox", Score: 0.8, ResourceURI: "http://dbpedia.org/resource/Fox"},
		},
		{
			name: "entity with disambiguation",
			input: `{"type":"Person","text":"Obama","relevance":0.9,
				"disambiguation":{"name":"Barack Obama","dbpedia_resource":"http://dbpedia.org/resource/Barack_Obama"}}`,
			want: domain.ScoredLabel{
				Text: "Obama", Score: 0.9, Type: "Person",
				Canonical: "Barack Obama", ResourceURI: "http://dbpedia.org/resource/Barack_Obama",
			},
		},
		{
			name:  "score wins over relevance",
			input: `{"text":"x","score":0.5,"relevance":0.9}`,
			want:  domain.ScoredLabel{Text: "x", Score: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got domain.ScoredLabel
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFeatureConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := domain.FeatureConfig{Feature: domain.FeatureCategory, Threshold: 70, Taxonomy: "nlu_category"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, bad := range []domain.FeatureConfig{
		{Feature: "sentiment", Threshold: 70, Taxonomy: "x"},
		{Feature: domain.FeatureKeyword, Threshold: 101, Taxonomy: "x"},
		{Feature: domain.FeatureKeyword, Threshold: -1, Taxonomy: "x"},
		{Feature: domain.FeatureKeyword, Threshold: 50},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", bad)
		}
	}
}

func TestAnalysisOptions_FeaturesPayloadUsesWireKeys(t *testing.T) {
	t.Parallel()

	opts := domain.AnalysisOptions{Features: map[domain.FeatureName]domain.FeatureOptions{
		domain.FeatureCategory: {},
		domain.FeatureKeyword:  {Limit: 10},
	}}

	body, err := json.Marshal(opts.FeaturesPayload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"categories":{},"keywords":{"limit":10}}`
	if string(body) != want {
		t.Errorf("payload = %s, want %s", body, want)
	}

	withDefaults := opts.WithDefaults()
	if withDefaults.Language != "en" || withDefaults.Timeout != domain.DefaultTimeout {
		t.Errorf("defaults not applied: %+v", withDefaults)
	}
}

func TestParseFeatureName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]domain.FeatureName{
		"category": domain.FeatureCategory,
		"entities": domain.FeatureEntity,
	} {
		got, err := domain.ParseFeatureName(in)
		if err != nil || got != want {
			t.Errorf("ParseFeatureName(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := domain.ParseFeatureName("sentiment"); err == nil {
		t.Error("expected error for unknown feature")
	}
}
