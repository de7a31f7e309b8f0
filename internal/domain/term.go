package domain

// Term is one value within a taxonomy.
type Term struct {
	ID          int64  `db:"id"           json:"id"`
	Taxonomy    string `db:"taxonomy"     json:"taxonomy"`
	Name        string `db:"name"         json:"name"`
	Key         string `db:"term_key"     json:"key"`
	Canonical   string `db:"canonical"    json:"canonical,omitempty"`
	ResourceURI string `db:"resource_uri" json:"resource_uri,omitempty"`
}

// TermMeta is optional metadata stored alongside a term. On concurrent
// creation the last writer's metadata wins.
type TermMeta struct {
	Canonical   string
	ResourceURI string
}

// FeatureLinkResult is the outcome of linking one feature.
type FeatureLinkResult struct {
	Taxonomy string `json:"taxonomy"`
	Terms    []Term `json:"terms"`
	Err      error  `json:"-"`
}

// LinkResult aggregates per-feature outcomes of one link call.
type LinkResult struct {
	ContentID  string                            `json:"content_id"`
	PerFeature map[FeatureName]FeatureLinkResult `json:"per_feature"`
}

// Failed returns the features whose linking failed.
func (r *LinkResult) Failed() []FeatureName {
	var out []FeatureName
	for _, f := range AllFeatures {
		if res, ok := r.PerFeature[f]; ok && res.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// TermNames returns the linked term names for f.
func (r *LinkResult) TermNames(f FeatureName) []string {
	res := r.PerFeature[f]
	names := make([]string, 0, len(res.Terms))
	for _, t := range res.Terms {
		names = append(names, t.Name)
	}
	return names
}
