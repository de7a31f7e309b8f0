// Package api exposes the autotagger pipeline, settings and diagnostics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/autotagger/internal/diagnostics"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
)

// Classifier runs the classification pipeline.
type Classifier interface {
	Classify(ctx context.Context, contentID string, override *domain.AnalysisOptions) (*domain.AnalysisResponse, error)
	ClassifyAndLink(ctx context.Context, contentID string) (*domain.LinkResult, error)
}

// BatchRunner classifies many content items.
type BatchRunner interface {
	Run(ctx context.Context, ids []string) *processor.Summary
}

// SettingsService reads and writes feature and tag filter settings.
type SettingsService interface {
	Get(ctx context.Context, f domain.FeatureName) (domain.FeatureConfig, error)
	Set(ctx context.Context, cfg domain.FeatureConfig) (domain.FeatureConfig, error)
	All(ctx context.Context) ([]domain.FeatureConfig, error)
	TagFilter(ctx context.Context) (tagfilter.Policy, error)
	SetTagFilter(ctx context.Context, mode string, labels []string) (tagfilter.Policy, error)
}

// DiagnosticsReader returns what was recorded for a content item.
type DiagnosticsReader interface {
	Snapshot(ctx context.Context, contentID string) (*diagnostics.Snapshot, error)
}

// Handler handles HTTP requests for the autotagger API.
type Handler struct {
	classifier  Classifier
	batch       BatchRunner
	settings    SettingsService
	diagnostics DiagnosticsReader
	logger      logger.Logger

	batchDeadline time.Duration
}

// NewHandler creates a Handler.
func NewHandler(
	classifier Classifier,
	batch BatchRunner,
	settings SettingsService,
	diag DiagnosticsReader,
	log logger.Logger,
) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		classifier:  classifier,
		batch:       batch,
		settings:    settings,
		diagnostics: diag,
		logger:      log,
	}
}

// ClassifyContent handles POST /api/v1/classify/:content_id.
// With ?preview=true the item is analyzed but nothing is linked.
func (h *Handler) ClassifyContent(c *gin.Context) {
	contentID := c.Param("content_id")

	preview, err := strconv.ParseBool(c.DefaultQuery("preview", "false"))
	if err != nil {
		respondBadRequest(c, "preview must be a boolean")
		return
	}
	if preview {
		h.preview(c, contentID)
		return
	}

	result, err := h.classifier.ClassifyAndLink(c.Request.Context(), contentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLinkResponse(result))
}

func (h *Handler) preview(c *gin.Context, contentID string) {
	var req PreviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBadRequest(c, err.Error())
			return
		}
	}

	override, err := req.options()
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.classifier.Classify(c.Request.Context(), contentID, override)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{
		ContentID: contentID,
		Language:  resp.Language,
		Features:  resp.Features,
		Raw:       resp.Raw,
	})
}

// options converts the request into an override, or nil when it sets nothing.
func (r PreviewRequest) options() (*domain.AnalysisOptions, error) {
	if r.Language == "" && r.TimeoutSeconds == 0 && len(r.Features) == 0 {
		return nil, nil
	}

	features, err := parseFeatures(r.Features)
	if err != nil {
		return nil, err
	}

	override := &domain.AnalysisOptions{
		Language: r.Language,
		Timeout:  time.Duration(r.TimeoutSeconds) * time.Second,
	}
	if len(features) > 0 {
		override.Features = make(map[domain.FeatureName]domain.FeatureOptions, len(features))
		for _, f := range features {
			override.Features[f] = domain.FeatureOptions{}
		}
	}
	return override, nil
}

// ClassifyBatch handles POST /api/v1/classify/batch. The run is bounded by
// the batch deadline so the summary is written before the connection's
// write timeout.
func (h *Handler) ClassifyBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.batchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.batchDeadline)
		defer cancel()
	}

	summary := h.batch.Run(ctx, req.ContentIDs)
	c.JSON(http.StatusOK, summary)
}

// ListFeatureSettings handles GET /api/v1/settings/features.
func (h *Handler) ListFeatureSettings(c *gin.Context) {
	configs, err := h.settings.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FeatureListResponse{Features: configs, Total: len(configs)})
}

// GetFeatureSettings handles GET /api/v1/settings/features/:feature.
func (h *Handler) GetFeatureSettings(c *gin.Context) {
	f, err := featureParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	cfg, err := h.settings.Get(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateFeatureSettings handles PUT /api/v1/settings/features/:feature.
func (h *Handler) UpdateFeatureSettings(c *gin.Context) {
	f, err := featureParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req FeatureSettingsRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		respondBadRequest(c, bindErr.Error())
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.settings.Get(ctx, f)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	if req.Taxonomy != nil {
		cfg.Taxonomy = *req.Taxonomy
	}
	if req.Options != nil {
		cfg.Options = *req.Options
	}

	saved, err := h.settings.Set(ctx, cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// GetTagFilter handles GET /api/v1/settings/tag-filter.
func (h *Handler) GetTagFilter(c *gin.Context) {
	policy, err := h.settings.TagFilter(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTagFilterResponse(policy))
}

// UpdateTagFilter handles PUT /api/v1/settings/tag-filter.
func (h *Handler) UpdateTagFilter(c *gin.Context) {
	var req TagFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	policy, err := h.settings.SetTagFilter(c.Request.Context(), req.Mode, req.Labels)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTagFilterResponse(policy))
}

// GetDiagnostics handles GET /api/v1/diagnostics/:content_id.
func (h *Handler) GetDiagnostics(c *gin.Context) {
	snap, err := h.diagnostics.Snapshot(c.Request.Context(), c.Param("content_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func featureParam(c *gin.Context) (domain.FeatureName, error) {
	f, err := domain.ParseFeatureName(c.Param("feature"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err)
	}
	return f, nil
}
