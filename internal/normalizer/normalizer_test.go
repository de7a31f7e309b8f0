package normalizer_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/normalizer"
)

func TestNormalize_StripsMarkupAndJoinsTitle(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: true})
	item := domain.ContentItem{
		Title: "Fox &amp; Dog",
		Body:  `<p>The quick <strong>brown</strong> fox.</p><script>alert(1)</script><p>Jumps over the lazy dog.</p>`,
	}

	got := n.Normalize(item)
	want := "Fox & Dog.\n\nThe quick brown fox.\nJumps over the lazy dog."
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalize_TitleWithTerminalPunctuation(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: true})
	got := n.Normalize(domain.ContentItem{Title: "Is it a fox?", Body: "Yes."})
	if got != "Is it a fox?\n\nYes." {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestNormalize_TitleExcluded(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: false})
	got := n.Normalize(domain.ContentItem{Title: "Ignored", Body: "The quick brown fox jumps over the lazy dog."})
	if got != "The quick brown fox jumps over the lazy dog." {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestNormalize_RemovesShortcodesKeepsEnclosedText(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{})
	body := `[caption id="attachment_5" align="alignnone"]A red fox[/caption] in the [gallery ids="1,2"] snow [1].`

	got := n.Normalize(domain.ContentItem{Body: body})
	if strings.Contains(got, "caption") || strings.Contains(got, "gallery") {
		t.Errorf("shortcode markers left in %q", got)
	}
	if !strings.Contains(got, "A red fox") {
		t.Errorf("enclosed text lost: %q", got)
	}
	if !strings.Contains(got, "[1]") {
		t.Errorf("numeric footnote should survive: %q", got)
	}
}

func TestNormalize_StripsNoiseAbbreviations(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{})
	got := n.Normalize(domain.ContentItem{Body: "Mammals, e.g. foxes, dogs etc. are common. See Smith et al. for more."})

	for _, noise := range []string{"e.g.", "etc.", "et al."} {
		if strings.Contains(got, noise) {
			t.Errorf("noise %q left in %q", noise, got)
		}
	}
	if !strings.Contains(got, "foxes") || !strings.Contains(got, "Smith") {
		t.Errorf("content words lost: %q", got)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: true})
	if got := n.Normalize(domain.ContentItem{}); got != "" {
		t.Errorf("Normalize(empty) = %q, want empty", got)
	}
}

func TestNormalize_OverrideReturnedVerbatim(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: true})
	n.Register("product", func(item domain.ContentItem) string {
		return "  <b>raw</b> " + item.ID
	})

	got := n.Normalize(domain.ContentItem{ID: "7", Type: "product", Title: "T", Body: "B"})
	if got != "  <b>raw</b> 7" {
		t.Errorf("override result altered: %q", got)
	}

	if got := n.Normalize(domain.ContentItem{Type: "post", Body: "plain"}); got != "plain" {
		t.Errorf("other types must not use the override, got %q", got)
	}

	n.Register(normalizer.WildcardType, func(domain.ContentItem) string { return "wild" })
	if got := n.Normalize(domain.ContentItem{Type: "post", Body: "plain"}); got != "wild" {
		t.Errorf("wildcard override not used, got %q", got)
	}

	n.Register("product", nil)
	if got := n.Normalize(domain.ContentItem{Type: "product"}); got != "wild" {
		t.Errorf("removed override should fall back to wildcard, got %q", got)
	}
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	t.Parallel()

	n := normalizer.New(normalizer.Options{IncludeTitle: true})
	item := domain.ContentItem{Title: "Title", Body: "<p>Body i.e. text</p>"}
	want := n.Normalize(item)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := n.Normalize(item); got != want {
				t.Errorf("concurrent Normalize() = %q, want %q", got, want)
			}
		}()
	}
	wg.Wait()
}
