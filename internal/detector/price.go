package detector

import (
	"regexp"
	"strconv"
	"strings"
)

// Bounds for a price with no currency signal nearby
const (
	PlausibleMin = 0.0
	PlausibleMax = 10000.0
)

const currencyWindow = 200

// Structured-data price keys, most specific first. All run on lower-cased markup.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"price"\s*:\s*"?(\d[\d.,]*)`),
	regexp.MustCompile(`"amount"\s*:\s*"?(\d[\d.,]*)`),
	regexp.MustCompile(`itemprop="price"[^>]*?content="(\d[\d.,]*)`),
	regexp.MustCompile(`property="product:price:amount"[^>]*?content="(\d[\d.,]*)`),
}

var (
	currencyKeyRe  = regexp.MustCompile(`"(?:currency|currency_code|currencycode|pricecurrency)"\s*:\s*"([a-z]{3})"`)
	currencyMetaRe = regexp.MustCompile(`(?:itemprop="pricecurrency"|property="product:price:currency")[^>]*?content="([a-z]{3})"`)
	currencySymRe  = regexp.MustCompile(`([€$£])\s*\d|\d\s*([€$£])`)
)

var symbolCodes = map[string]string{
	"€": "eur",
	"$": "usd",
	"£": "gbp",
}

// ExtractPrice returns the first structured price in markup. A price is
// accepted when the expected currency is signalled near it, or when no
// currency is signalled and it lies within the plausible range. A different
// currency nearby rejects it.
func ExtractPrice(markup, currency string) (float64, bool) {
	text := strings.ToLower(markup)
	want := strings.ToLower(currency)

	for _, re := range pricePatterns {
		m := re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}

		value, ok := parseAmount(text[m[2]:m[3]])
		if !ok {
			return 0, false
		}

		lo := max(0, m[0]-currencyWindow)
		hi := min(len(text), m[1]+currencyWindow)
		codes := currencySignals(text[lo:hi])

		switch {
		case codes[want]:
			return value, true
		case len(codes) > 0:
			return 0, false
		case value >= PlausibleMin && value <= PlausibleMax:
			return value, true
		default:
			return 0, false
		}
	}
	return 0, false
}

// parseAmount reads a formatted number such as 12.50, 3,95, 1,299.00 or
// 1.299,00. The last separator is the decimal point unless it repeats, in
// which case it groups thousands. A lone separator followed by exactly three
// digits could be either, so the token is rejected.
func parseAmount(tok string) (float64, bool) {
	tok = strings.TrimRight(tok, ".,")
	last := strings.LastIndexAny(tok, ".,")
	if last < 0 {
		return parseDigits(tok)
	}

	sep := tok[last]
	whole, frac := tok[:last], tok[last+1:]
	if strings.IndexByte(whole, sep) >= 0 {
		digits, ok := ungroup(tok, sep)
		if !ok {
			return 0, false
		}
		return parseDigits(digits)
	}

	group := byte(',')
	if sep == ',' {
		group = '.'
	}
	if len(frac) == 3 && strings.IndexByte(whole, group) < 0 {
		return 0, false
	}
	if len(frac) > 2 {
		return 0, false
	}
	digits, ok := ungroup(whole, group)
	if !ok {
		return 0, false
	}
	return parseDigits(digits + "." + frac)
}

// ungroup strips sep from s when every group after the first has exactly
// three digits
func ungroup(s string, sep byte) (string, bool) {
	groups := strings.Split(s, string(sep))
	for i, g := range groups {
		switch {
		case g == "" || strings.ContainsAny(g, ".,"):
			return "", false
		case i == 0 && len(groups) > 1 && len(g) > 3:
			return "", false
		case i > 0 && len(g) != 3:
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func parseDigits(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// currencySignals collects the currency codes mentioned in window
func currencySignals(window string) map[string]bool {
	codes := make(map[string]bool)
	for _, m := range currencyKeyRe.FindAllStringSubmatch(window, -1) {
		codes[m[1]] = true
	}
	for _, m := range currencyMetaRe.FindAllStringSubmatch(window, -1) {
		codes[m[1]] = true
	}
	for _, m := range currencySymRe.FindAllStringSubmatch(window, -1) {
		sym := m[1]
		if sym == "" {
			sym = m[2]
		}
		codes[symbolCodes[sym]] = true
	}
	return codes
}
