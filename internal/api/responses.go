package api

import (
	"encoding/json"
	"sort"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
)

// Link outcomes reported by ClassifyAndLink.
const (
	linkStatusSucceeded = "succeeded"
	linkStatusPartial   = "partial"
)

// PreviewRequest optionally overrides analysis options for a preview run.
type PreviewRequest struct {
	Language       string   `json:"language"`
	TimeoutSeconds int      `json:"timeout_seconds" binding:"gte=0"`
	Features       []string `json:"features"`
}

// PreviewResponse carries the provider labels without linking.
type PreviewResponse struct {
	ContentID string                                      `json:"content_id"`
	Language  string                                      `json:"language"`
	Features  map[domain.FeatureName][]domain.ScoredLabel `json:"features"`
	Raw       json.RawMessage                             `json:"raw,omitempty"`
}

// FeatureLinkResponse is the per-feature link outcome.
type FeatureLinkResponse struct {
	Taxonomy string        `json:"taxonomy"`
	Terms    []domain.Term `json:"terms"`
	Error    string        `json:"error,omitempty"`
}

// LinkResponse is returned by POST /api/v1/classify/:content_id.
type LinkResponse struct {
	ContentID string                                      `json:"content_id"`
	Status    string                                      `json:"status"`
	Features  map[domain.FeatureName]FeatureLinkResponse `json:"features"`
}

// MaxBatchIDs caps a synchronous batch request. Keep in sync with the
// binding on BatchRequest.
const MaxBatchIDs = 50

// BatchRequest lists the content items to classify.
type BatchRequest struct {
	ContentIDs []string `json:"content_ids" binding:"required,min=1,max=50,dive,required"`
}

// FeatureSettingsRequest is a partial update of a feature config.
// Omitted fields keep their stored value.
type FeatureSettingsRequest struct {
	Enabled   *bool                  `json:"enabled"`
	Threshold *float64               `json:"threshold"`
	Taxonomy  *string                `json:"taxonomy"`
	Options   *domain.FeatureOptions `json:"options"`
}

// FeatureListResponse lists every feature config.
type FeatureListResponse struct {
	Features []domain.FeatureConfig `json:"features"`
	Total    int                    `json:"total"`
}

// TagFilterRequest replaces the tag filter policy.
type TagFilterRequest struct {
	Mode   string   `json:"mode"   binding:"required"`
	Labels []string `json:"labels"`
}

// TagFilterResponse is the stored policy with normalized labels.
type TagFilterResponse struct {
	Mode   string   `json:"mode"`
	Labels []string `json:"labels"`
}

func newLinkResponse(result *domain.LinkResult) LinkResponse {
	resp := LinkResponse{
		ContentID: result.ContentID,
		Status:    linkStatusSucceeded,
		Features:  make(map[domain.FeatureName]FeatureLinkResponse, len(result.PerFeature)),
	}
	for f, res := range result.PerFeature {
		out := FeatureLinkResponse{Taxonomy: res.Taxonomy, Terms: res.Terms}
		if out.Terms == nil {
			out.Terms = []domain.Term{}
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			resp.Status = linkStatusPartial
		}
		resp.Features[f] = out
	}
	return resp
}

func newTagFilterResponse(p tagfilter.Policy) TagFilterResponse {
	return TagFilterResponse{Mode: string(p.Mode), Labels: p.Labels()}
}

// parseFeatures maps request feature names and drops duplicates.
func parseFeatures(names []string) ([]domain.FeatureName, error) {
	seen := make(map[domain.FeatureName]struct{}, len(names))
	out := make([]domain.FeatureName, 0, len(names))
	for _, name := range names {
		f, err := domain.ParseFeatureName(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
