// Package classifier runs the classify-and-link pipeline for one content item.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
	"github.com/jonesrussell/north-cloud/autotagger/internal/telemetry"
)

//go:generate mockgen -destination=../testhelpers/mocks/classifier_mock.go -package=mocks . Analyzer,Recorder

// Operation labels used for metrics.
const (
	opClassify        = "classify"
	opClassifyAndLink = "classify_and_link"
)

// ContentStore loads content items.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*domain.ContentItem, error)
}

// Normalizer turns a content item into plain text.
type Normalizer interface {
	Normalize(item domain.ContentItem) string
}

// Analyzer sends text to the analysis provider.
type Analyzer interface {
	Analyze(ctx context.Context, text string, opts domain.AnalysisOptions) (*domain.AnalysisResponse, error)
}

// SettingsProvider supplies feature configs and the tag filter.
type SettingsProvider interface {
	EnabledConfigs(ctx context.Context) (map[domain.FeatureName]domain.FeatureConfig, error)
	TagFilter(ctx context.Context) (tagfilter.Policy, error)
}

// Linker turns a response into term associations.
type Linker interface {
	Link(
		ctx context.Context,
		item domain.ContentItem,
		resp *domain.AnalysisResponse,
		configs map[domain.FeatureName]domain.FeatureConfig,
		policy tagfilter.Policy,
	) domain.LinkResult
}

// Recorder keeps diagnostics for operators. Its failures are logged only.
type Recorder interface {
	RecordResponse(ctx context.Context, contentID string, raw []byte) error
	RecordError(ctx context.Context, contentID, kind, message string) error
	ClearError(ctx context.Context, contentID string) error
}

// PreLinkTransform rewrites a response before linking.
type PreLinkTransform func(item domain.ContentItem, resp *domain.AnalysisResponse) *domain.AnalysisResponse

// Deps are the collaborators of an Orchestrator. Recorder and Telemetry may be nil.
type Deps struct {
	Content    ContentStore
	Normalizer Normalizer
	Analyzer   Analyzer
	Settings   SettingsProvider
	Linker     Linker
	Recorder   Recorder
	Telemetry  *telemetry.Provider
	Logger     logger.Logger

	// Language and Timeout are the request defaults.
	Language string
	Timeout  time.Duration
}

// Orchestrator is the post classifier. It holds no per-call state and is
// safe for concurrent use once configured.
type Orchestrator struct {
	deps    Deps
	log     logger.Logger
	preLink []PreLinkTransform
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{deps: deps, log: log}
}

// UsePreLinkTransform appends a pre-link transform. Call during setup only.
func (o *Orchestrator) UsePreLinkTransform(t PreLinkTransform) {
	o.preLink = append(o.preLink, t)
}

// run is the state carried from classify into linking.
type run struct {
	item    *domain.ContentItem
	configs map[domain.FeatureName]domain.FeatureConfig
	resp    *domain.AnalysisResponse
}

// Classify analyzes a content item without linking. override, when set,
// replaces language, timeout and features for this call.
func (o *Orchestrator) Classify(
	ctx context.Context, contentID string, override *domain.AnalysisOptions,
) (*domain.AnalysisResponse, error) {
	ctx, span := o.deps.Telemetry.StartSpan(ctx, "classifier.Classify", attribute.String("content_id", contentID))
	defer span.End()

	r, err := o.classify(ctx, span, contentID, override)
	o.deps.Telemetry.RecordClassification(ctx, opClassify, domain.Kind(err))
	if err != nil {
		return nil, err
	}

	o.stage(span, contentID, StageDone)
	return r.resp, nil
}

// ClassifyAndLink analyzes a content item and links the result. Classify
// errors are returned unchanged. Per-feature linking failures are reported
// on the LinkResult, not as an error.
func (o *Orchestrator) ClassifyAndLink(ctx context.Context, contentID string) (*domain.LinkResult, error) {
	ctx, span := o.deps.Telemetry.StartSpan(ctx, "classifier.ClassifyAndLink", attribute.String("content_id", contentID))
	defer span.End()

	result, err := o.classifyAndLink(ctx, span, contentID)
	o.deps.Telemetry.RecordClassification(ctx, opClassifyAndLink, outcome(result, err))
	return result, err
}

func (o *Orchestrator) classifyAndLink(ctx context.Context, span trace.Span, contentID string) (*domain.LinkResult, error) {
	r, err := o.classify(ctx, span, contentID, nil)
	if err != nil {
		return nil, err
	}

	o.stage(span, contentID, StageLinking)

	resp := r.resp
	for _, t := range o.preLink {
		if next := t(*r.item, resp); next != nil {
			resp = next
		}
	}

	policy, err := o.deps.Settings.TagFilter(ctx)
	if err != nil {
		err = fmt.Errorf("load tag filter: %w", err)
		o.fail(ctx, span, contentID, err)
		return nil, err
	}

	result := o.deps.Linker.Link(ctx, *r.item, resp, r.configs, policy)

	if failed := result.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		msgs := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, string(f))
			msgs = append(msgs, result.PerFeature[f].Err.Error())
		}
		span.SetAttributes(attribute.StringSlice("failed_features", names))
		o.record(contentID, func(rec Recorder) error {
			return rec.RecordError(ctx, contentID, domain.KindLinking, strings.Join(msgs, "; "))
		})
		o.log.Warn("Linking partially failed",
			logger.ContentID(contentID),
			logger.Strings("failed_features", names),
		)
	} else {
		o.record(contentID, func(rec Recorder) error {
			return rec.ClearError(ctx, contentID)
		})
	}

	o.stage(span, contentID, StageDone)
	o.log.Info("Content classified and linked",
		logger.ContentID(contentID),
		logger.Int("features", len(result.PerFeature)),
	)
	return &result, nil
}

func (o *Orchestrator) classify(
	ctx context.Context, span trace.Span, contentID string, override *domain.AnalysisOptions,
) (*run, error) {
	o.stage(span, contentID, StageNormalizing)

	item, err := o.deps.Content.GetContent(ctx, contentID)
	if err != nil {
		o.stage(span, contentID, StageFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Kind(err))
		return nil, err
	}

	text := o.deps.Normalizer.Normalize(*item)

	configs, err := o.deps.Settings.EnabledConfigs(ctx)
	if err != nil {
		err = fmt.Errorf("load feature settings: %w", err)
		o.fail(ctx, span, contentID, err)
		return nil, err
	}

	opts := o.options(configs, override)
	if len(opts.Features) == 0 {
		o.fail(ctx, span, contentID, domain.ErrNotEnabled)
		return nil, domain.ErrNotEnabled
	}

	o.stage(span, contentID, StageRequesting)
	span.SetAttributes(attribute.Int("features", len(opts.Features)), attribute.Int("text_length", len(text)))

	start := time.Now()
	resp, err := o.deps.Analyzer.Analyze(ctx, text, opts)
	o.deps.Telemetry.RecordAnalysis(ctx, domain.Kind(err), time.Since(start))
	if err != nil {
		o.fail(ctx, span, contentID, err)
		return nil, err
	}

	o.record(contentID, func(rec Recorder) error {
		return rec.RecordResponse(ctx, contentID, resp.Raw)
	})

	return &run{item: item, configs: configs, resp: resp}, nil
}

// options builds request options from enabled configs, then applies override.
func (o *Orchestrator) options(
	configs map[domain.FeatureName]domain.FeatureConfig, override *domain.AnalysisOptions,
) domain.AnalysisOptions {
	opts := domain.AnalysisOptions{
		Language: o.deps.Language,
		Timeout:  o.deps.Timeout,
		Features: make(map[domain.FeatureName]domain.FeatureOptions, len(configs)),
	}
	for f, cfg := range configs {
		opts.Features[f] = cfg.Options
	}

	if override != nil {
		if override.Language != "" {
			opts.Language = override.Language
		}
		if override.Timeout > 0 {
			opts.Timeout = override.Timeout
		}
		if len(override.Features) > 0 {
			opts.Features = override.Features
		}
	}
	return opts.WithDefaults()
}

func (o *Orchestrator) stage(span trace.Span, contentID string, s Stage) {
	span.AddEvent(s.String())
	o.log.Debug("Classification stage",
		logger.ContentID(contentID),
		logger.String("stage", s.String()),
	)
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, contentID string, err error) {
	o.stage(span, contentID, StageFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, domain.Kind(err))

	o.log.Warn("Classification failed",
		logger.ContentID(contentID),
		logger.String("kind", domain.Kind(err)),
		logger.Error(err),
	)
	o.record(contentID, func(rec Recorder) error {
		return rec.RecordError(ctx, contentID, domain.Kind(err), err.Error())
	})
}

func (o *Orchestrator) record(contentID string, write func(Recorder) error) {
	if o.deps.Recorder == nil {
		return
	}
	if err := write(o.deps.Recorder); err != nil {
		o.log.Warn("Failed to write diagnostics",
			logger.ContentID(contentID),
			logger.Error(err),
		)
	}
}

func outcome(result *domain.LinkResult, err error) string {
	if err != nil {
		return domain.Kind(err)
	}
	if result != nil && len(result.Failed()) > 0 {
		return domain.KindLinking
	}
	return domain.KindNone
}
