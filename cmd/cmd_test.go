package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
)

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, &processor.Summary{
		RunID:     "run-1",
		Total:     3,
		Succeeded: 1,
		Partial:   1,
		Failed:    1,
		Duration:  1500 * time.Millisecond,
		Results: []processor.ItemResult{
			{ContentID: "c1", Status: processor.StatusSucceeded, Attempts: 1, Terms: 4},
			{ContentID: "c2", Status: processor.StatusPartial, Kind: domain.KindLinking, Attempts: 1, FailedFeatures: []string{"concept"}},
			{ContentID: "c3", Status: processor.StatusFailed, Kind: domain.KindTransport, Attempts: 3, Error: "dial tcp: timeout"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "c2")
	assert.Contains(t, out, "failed features: concept")
	assert.Contains(t, out, "dial tcp: timeout")
}

func TestRenderPreview_ShowsCanonicalName(t *testing.T) {
	var buf bytes.Buffer
	renderPreview(&buf, "c1", &domain.AnalysisResponse{
		Language: "en",
		Features: map[domain.FeatureName][]domain.ScoredLabel{
			domain.FeatureEntity: {{Text: "Paris", Canonical: "Paris, France", Score: 0.91, Type: "Location"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Paris (Paris, France)")
	assert.Contains(t, out, "0.910")
	assert.Contains(t, out, "Location")
}

func TestRenderFeatureConfigsAndTagFilter(t *testing.T) {
	var buf bytes.Buffer
	renderFeatureConfigs(&buf, []domain.FeatureConfig{
		{Feature: domain.FeatureKeyword, Enabled: true, Threshold: 55, Taxonomy: "nlu_keyword"},
		{Feature: domain.FeatureCategory, Threshold: 70, Taxonomy: "nlu_category"},
	})
	renderTagFilter(&buf, tagfilter.NewPolicy(tagfilter.ModeDeny, []string{"Spam", "ads"}))

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("category")), bytes.Index(buf.Bytes(), []byte("keyword")))
	assert.Contains(t, out, "55.0")
	assert.Contains(t, out, "ads, spam")
}

func TestApplySetFlags_OnlyChangedFlags(t *testing.T) {
	cmd := settingsSetCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--enabled", "--limit", "5"}))

	cfg := domain.FeatureConfig{Feature: domain.FeatureKeyword, Threshold: 40, Taxonomy: "custom"}
	got := applySetFlags(cmd, cfg, settingsSetFlags{enabled: true, threshold: domain.DefaultThreshold, limit: 5})

	assert.True(t, got.Enabled)
	assert.Equal(t, 5, got.Options.Limit)
	assert.InDelta(t, 40.0, got.Threshold, 0)
	assert.Equal(t, "custom", got.Taxonomy)
}

func TestContentStatus(t *testing.T) {
	assert.Equal(t, domain.ContentStatus(""), contentStatus(""))
	assert.Equal(t, domain.StatusPublished, contentStatus("published"))
	assert.Equal(t, domain.StatusOther, contentStatus("archived"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestMigrateCommand_RejectsUnknownDirection(t *testing.T) {
	cmd := migrateCommand()
	require.Error(t, cmd.Args(cmd, []string{"sideways"}))
	require.NoError(t, cmd.Args(cmd, []string{"up"}))
}
