// Package tagfilter decides whether a candidate label may become a term.
package tagfilter

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects how the policy list is interpreted.
type Mode string

// Policy modes.
const (
	ModeNone  Mode = "none"
	ModeAllow Mode = "allow"
	ModeDeny  Mode = "deny"
)

// ParseMode maps a stored value to a Mode. Empty means none.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeNone:
		return ModeNone, nil
	case ModeAllow:
		return ModeAllow, nil
	case ModeDeny:
		return ModeDeny, nil
	default:
		return "", fmt.Errorf("unknown tag filter mode %q", s)
	}
}

// Policy is an allow-list or deny-list of normalized labels.
type Policy struct {
	Mode Mode
	list map[string]struct{}
}

// NewPolicy normalizes and de-duplicates labels. Blank labels are dropped.
func NewPolicy(mode Mode, labels []string) Policy {
	list := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if n := Normalize(l); n != "" {
			list[n] = struct{}{}
		}
	}
	return Policy{Mode: mode, list: list}
}

// Labels returns the normalized list, sorted.
func (p Policy) Labels() []string {
	out := make([]string, 0, len(p.list))
	for l := range p.list {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Normalize trims, applies NFC and lower-cases a label.
func Normalize(label string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(label)))
}

// CanUseTag reports whether label passes the policy. An empty allow-list
// allows nothing; an empty deny-list blocks nothing.
func CanUseTag(p Policy, label string) bool {
	switch p.Mode {
	case ModeAllow:
		if len(p.list) == 0 {
			return false
		}
		_, ok := p.list[Normalize(label)]
		return ok
	case ModeDeny:
		if len(p.list) == 0 {
			return true
		}
		_, ok := p.list[Normalize(label)]
		return !ok
	default:
		return true
	}
}
