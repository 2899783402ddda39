// Package ttsprep rewrites written text so speech engines read it naturally.
package ttsprep

import (
	"regexp"
	"strings"
)

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

var acronyms = [][2]string{
	{"AI", "A.I."},
	{"API", "A.P.I."},
	{"APIs", "A.P.I.s"},
	{"AWS", "A.W.S."},
	{"CEO", "C.E.O."},
	{"CLI", "C.L.I."},
	{"CPU", "C.P.U."},
	{"CSS", "C.S.S."},
	{"CTO", "C.T.O."},
	{"DB", "D.B."},
	{"DL", "D.L."},
	{"FAQ", "F.A.Q."},
	{"GCP", "G.C.P."},
	{"GPU", "G.P.U."},
	{"HTML", "H.T.M.L."},
	{"HTTP", "H.T.T.P."},
	{"HTTPS", "H.T.T.P.S."},
	{"IDE", "I.D.E."},
	{"IoT", "I.o.T."},
	{"JSON", "J.S.O.N."},
	{"LLM", "L.L.M."},
	{"LLMs", "L.L.M.s"},
	{"ML", "M.L."},
	{"NLP", "N.L.P."},
	{"OSS", "O.S.S."},
	{"RAG", "R.A.G."},
	{"REST", "R.E.S.T."},
	{"SDK", "S.D.K."},
	{"SQL", "S.Q.L."},
	{"SaaS", "S.a.a.S."},
	{"SSH", "S.S.H."},
	{"SSL", "S.S.L."},
	{"TTS", "T.T.S."},
	{"UI", "U.I."},
	{"URL", "U.R.L."},
	{"URLs", "U.R.L.s"},
	{"USB", "U.S.B."},
	{"UX", "U.X."},
	{"VPN", "V.P.N."},
	{"XSS", "X.S.S."},
}

var abbreviations = strings.NewReplacer(
	"vs.", "versus",
	"e.g.", "for example",
	"i.e.", "that is",
	"etc.", "etcetera",
	"approx.", "approximately",
)

var acronymRules = compileAcronyms()

// Order matters: fenced code goes before inline code, emphasis markers longest first.
var markdownRules = []replacement{
	{regexp.MustCompile("```[\\s\\S]*?```"), ""},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
	{regexp.MustCompile(`\*\*\*([^*_\n]+)\*\*\*`), "$1"},
	{regexp.MustCompile(`___([^*_\n]+)___`), "$1"},
	{regexp.MustCompile(`\*\*([^*_\n]+)\*\*`), "$1"},
	{regexp.MustCompile(`__([^*_\n]+)__`), "$1"},
	{regexp.MustCompile(`\*([^*_\n]+)\*`), "$1"},
	{regexp.MustCompile(`_([^*_\n]+)_`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^>\s+`), ""},
	{regexp.MustCompile(`(?m)^[-*_]{3,}$`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[-*+]\s+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*\d+\.\s+`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

var whitespace = regexp.MustCompile(`\s+`)

func compileAcronyms() []replacement {
	rules := make([]replacement, 0, len(acronyms))
	for _, a := range acronyms {
		rules = append(rules, replacement{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(a[0]) + `\b`),
			with:    a[1],
		})
	}
	return rules
}

// StripMarkdown removes markdown syntax while keeping the readable text.
func StripMarkdown(text string) string {
	for _, r := range markdownRules {
		text = r.pattern.ReplaceAllString(text, r.with)
	}
	return strings.TrimSpace(text)
}

// ExpandAcronyms spells out known acronyms letter by letter on whole-word matches.
func ExpandAcronyms(text string) string {
	for _, r := range acronymRules {
		text = r.pattern.ReplaceAllLiteralString(text, r.with)
	}
	return text
}

// ExpandAbbreviations replaces common written abbreviations with spoken words.
func ExpandAbbreviations(text string) string {
	return abbreviations.Replace(text)
}

// Preprocess runs the full speech preparation chain and flattens whitespace.
func Preprocess(text string) string {
	text = StripMarkdown(text)
	text = ExpandAcronyms(text)
	text = ExpandAbbreviations(text)
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
