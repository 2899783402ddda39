// Package textnorm cleans untrusted text and HTML coming from upstream sources.
package textnorm

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxTitleLength bounds article titles.
	MaxTitleLength = 500
	// MaxExcerptLength bounds article excerpts.
	MaxExcerptLength = 5000

	wordBoundaryRatio = 0.8

	maxDecodePasses = 4
)

var (
	stripPolicy = newStripPolicy()
	htmlPolicy  = newHTMLPolicy()

	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	diacritics   = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
)

func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "p", "br", "ul", "ol", "li")
	p.AllowAttrs("href", "target", "rel").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	return p
}

// StripHTML removes all markup, decodes entities and collapses whitespace.
// Entity-encoded markup is stripped too: sanitising and decoding repeat until the
// text stops changing, and text that never settles is returned still escaped.
func StripHTML(input string) string {
	if input == "" {
		return ""
	}
	plain := input
	settled := false
	for range maxDecodePasses {
		next := html.UnescapeString(stripPolicy.Sanitize(plain))
		if next == plain {
			settled = true
			break
		}
		plain = next
	}
	if !settled {
		plain = stripPolicy.Sanitize(plain)
	}
	return strings.Join(strings.Fields(plain), " ")
}

// SanitizeText strips markup and truncates to maxLength runes, preferring a word boundary
// when one falls in the last fifth of the allowed length.
func SanitizeText(input string, maxLength int) string {
	plain := StripHTML(input)
	if maxLength <= 0 {
		return plain
	}

	r := []rune(plain)
	if len(r) <= maxLength {
		return plain
	}

	cut := r[:maxLength]
	lastSpace := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if cut[i] == ' ' {
			lastSpace = i
			break
		}
	}
	if lastSpace > int(float64(maxLength)*wordBoundaryRatio) {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(string(cut))
}

// SanitizeHTML keeps a small formatting whitelist and drops everything else.
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// Slugify produces a lowercase, hyphen-separated, ASCII-only identifier.
func Slugify(text string) string {
	folded, _, err := transform.String(diacritics, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	slug := nonSlugChars.ReplaceAllString(folded, "-")
	return strings.Trim(slug, "-")
}

// SlugSet hands out slugs that are unique within one fetch batch.
type SlugSet struct {
	used map[string]struct{}
}

// NewSlugSet returns an empty set.
func NewSlugSet() *SlugSet {
	return &SlugSet{used: map[string]struct{}{}}
}

// Next returns base if unused, otherwise the first free base-N with N starting at 2.
func (s *SlugSet) Next(base string) string {
	if base == "" {
		base = "article"
	}
	slug := base
	for n := 2; s.has(slug); n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	s.used[slug] = struct{}{}
	return slug
}

func (s *SlugSet) has(slug string) bool {
	_, ok := s.used[slug]
	return ok
}
