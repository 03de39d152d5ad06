package detector

import (
	"regexp"
	"strings"
)

// Gold purity signals in the languages the marketplace serves
var goldPositive = []string{
	"14k", "18k", "585", "750", "14kt", "18kt",
	"14 karaat", "18 karaat",
	"solid gold", "massief goud", "massiv gold", "or massif", "oro massiccio",
	"echt goud", "gouden",
	"hallmark", "keurmerk", "punze",
}

// Plating, base metal and costume jewellery signals
var goldNegative = []string{
	"gold plated", "plated", "verguld", "goldplated",
	"gold filled", "gold-filled", "vermeil", "doublé", "gp",
	"costume", "fashion jewelry", "bijoux fantaisie", "modeschmuck",
	"messing", "brass", "stainless steel", "rvs", "edelstahl", "alloy",
}

// KeywordScorer counts distinct keyword hits in case-folded text
type KeywordScorer struct {
	positive []*regexp.Regexp
	negative []*regexp.Regexp
}

// NewKeywordScorer compiles the positive and negative lists
func NewKeywordScorer(positive, negative []string) *KeywordScorer {
	return &KeywordScorer{
		positive: compileKeywords(positive),
		negative: compileKeywords(negative),
	}
}

// NewGoldScorer returns the scorer for solid gold jewellery
func NewGoldScorer() *KeywordScorer {
	return NewKeywordScorer(goldPositive, goldNegative)
}

// Score returns the number of positive and negative keywords present in text
func (s *KeywordScorer) Score(text string) (positive, negative int) {
	folded := strings.ToLower(text)
	return countMatches(s.positive, folded), countMatches(s.negative, folded)
}

func countMatches(res []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range res {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// compileKeywords anchors each keyword on word boundaries where its edge is
// an ASCII letter or digit, so "gp" does not match inside "gpu".
func compileKeywords(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if w == "" {
			continue
		}
		pattern := regexp.QuoteMeta(w)
		if isWordByte(w[0]) {
			pattern = `\b` + pattern
		}
		if isWordByte(w[len(w)-1]) {
			pattern += `\b`
		}
		out = append(out, regexp.MustCompile(pattern))
	}
	return out
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
