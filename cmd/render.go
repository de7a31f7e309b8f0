package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
)

// maxErrorWidth truncates error messages in the summary table.
const maxErrorWidth = 60

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSummary(w io.Writer, s *processor.Summary) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Run %s", s.RunID))
	t.AppendHeader(table.Row{"Content ID", "Status", "Kind", "Attempts", "Terms", "Error"})
	for _, r := range s.Results {
		errText := r.Error
		if len(r.FailedFeatures) > 0 && errText == "" {
			errText = "failed features: " + strings.Join(r.FailedFeatures, ", ")
		}
		t.AppendRow(table.Row{r.ContentID, r.Status, r.Kind, r.Attempts, r.Terms, truncate(errText, maxErrorWidth)})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("total %d", s.Total),
		fmt.Sprintf("ok %d", s.Succeeded),
		fmt.Sprintf("partial %d", s.Partial),
		fmt.Sprintf("failed %d", s.Failed),
		fmt.Sprintf("skipped %d", s.Skipped),
		s.Duration.Round(time.Millisecond).String(),
	})
	t.Render()
}

func renderPreview(w io.Writer, contentID string, resp *domain.AnalysisResponse) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", contentID, resp.Language))
	t.AppendHeader(table.Row{"Feature", "Label", "Score", "Type"})
	for _, f := range domain.AllFeatures {
		for _, l := range resp.Labels(f) {
			name := l.Text
			if l.Canonical != "" && l.Canonical != l.Text {
				name = fmt.Sprintf("%s (%s)", l.Text, l.Canonical)
			}
			t.AppendRow(table.Row{f, name, fmt.Sprintf("%.3f", l.Score), l.Type})
		}
	}
	t.Render()
}

func renderFeatureConfigs(w io.Writer, cfgs []domain.FeatureConfig) {
	sort.SliceStable(cfgs, func(i, j int) bool { return cfgs[i].Feature < cfgs[j].Feature })

	t := newTable(w)
	t.AppendHeader(table.Row{"Feature", "Enabled", "Threshold", "Taxonomy", "Limit", "Sentiment", "Emotion"})
	for _, c := range cfgs {
		t.AppendRow(table.Row{
			c.Feature, c.Enabled, fmt.Sprintf("%.1f", c.Threshold), c.Taxonomy,
			c.Options.Limit, c.Options.Sentiment, c.Options.Emotion,
		})
	}
	t.Render()
}

func renderTagFilter(w io.Writer, p tagfilter.Policy) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Mode", "Labels"})
	t.AppendRow(table.Row{p.Mode, strings.Join(p.Labels(), ", ")})
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
