// Package normalizer turns content items into plain text for analysis.
package normalizer

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/unicode/norm"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// WildcardType registers an override for every content type without a specific one.
const WildcardType = "*"

// OverrideFunc replaces the computed text for a content type. Its result is
// returned verbatim.
type OverrideFunc func(item domain.ContentItem) string

// Options configure a Normalizer.
type Options struct {
	IncludeTitle bool
}

// nonContentSelectors are removed before text extraction.
const nonContentSelectors = "script, style, noscript, iframe, template"

// blockSelectors get a trailing newline so adjacent blocks do not run together.
const blockSelectors = "p, div, br, li, ul, ol, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote, pre, section, article, figure, figcaption, hr"

var (
	shortcodePattern  = regexp.MustCompile(`\[\[?/?[A-Za-z][\w-]*(?:\s[^\[\]]*)?/?\]?\]`)
	horizontalSpace   = regexp.MustCompile(`[^\S\n]+`)
	blankLines        = regexp.MustCompile(`\s*\n\s*(?:\n\s*)+`)
	singleNewlineTrim = regexp.MustCompile(` ?\n ?`)
)

// noiseAbbreviations are stripped from body text; they add nothing to
// classification and skew keyword extraction.
var noiseAbbreviations = []string{"e.g.", "i.e.", "etc.", "et al.", "viz.", "cf.", "approx."}

// Normalizer converts content items to analysis text. Safe for concurrent use.
type Normalizer struct {
	opts Options

	mu        sync.RWMutex
	overrides map[string]OverrideFunc

	matchMu     sync.Mutex
	noise       *ahocorasick.Matcher
	noiseRegexp []*regexp.Regexp
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	res := make([]*regexp.Regexp, len(noiseAbbreviations))
	for i, abbr := range noiseAbbreviations {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbr))
	}
	return &Normalizer{
		opts:        opts,
		overrides:   make(map[string]OverrideFunc),
		noise:       ahocorasick.NewStringMatcher(noiseAbbreviations),
		noiseRegexp: res,
	}
}

// Register installs an override for contentType (or WildcardType).
// A nil fn removes the override.
func (n *Normalizer) Register(contentType string, fn OverrideFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if fn == nil {
		delete(n.overrides, contentType)
		return
	}
	n.overrides[contentType] = fn
}

func (n *Normalizer) override(contentType string) (OverrideFunc, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if fn, ok := n.overrides[contentType]; ok {
		return fn, true
	}
	fn, ok := n.overrides[WildcardType]
	return fn, ok
}

// Normalize returns the plain text to analyse for item.
func (n *Normalizer) Normalize(item domain.ContentItem) string {
	if fn, ok := n.override(item.Type); ok {
		return fn(item)
	}

	body := n.stripNoise(Text(item.Body))
	if !n.opts.IncludeTitle {
		return body
	}

	title := Text(item.Title)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	case strings.ContainsAny(title[len(title)-1:], ".!?"):
		return title + "\n\n" + body
	default:
		return title + ".\n\n" + body
	}
}

// Text strips shortcodes and markup from s and tidies whitespace.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	s = shortcodePattern.ReplaceAllString(s, " ")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err == nil {
		root := doc.Find("body").First()
		root.Find(nonContentSelectors).Remove()
		root.Find(blockSelectors).AfterHtml("\n")
		s = root.Text()
	}

	return tidy(s)
}

func tidy(s string) string {
	s = norm.NFC.String(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = singleNewlineTrim.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// stripNoise removes the noise abbreviations present in s. The automaton
// narrows the regexp pass to abbreviations that actually occur.
func (n *Normalizer) stripNoise(s string) string {
	if s == "" {
		return s
	}

	n.matchMu.Lock()
	hits := n.noise.Match([]byte(strings.ToLower(s)))
	n.matchMu.Unlock()

	if len(hits) == 0 {
		return s
	}
	for _, idx := range hits {
		if idx < len(n.noiseRegexp) {
			s = n.noiseRegexp[idx].ReplaceAllString(s, "")
		}
	}
	return tidy(strings.ReplaceAll(s, " ,", ","))
}
