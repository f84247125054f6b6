package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/user/strain-pipeline/internal/units"
)

var (
	packSizeRegex = regexp.MustCompile(`(?i)(?:\(\s*\d+\s*(?:x\s*)?(?:seeds?|pack|pk|pcs)\s*\)|[-–|,]?\s*\b\d+\s*(?:x\s*)?(?:seeds?|pack|pk|pcs)\b|\bx\s*\d+\b|\b\d+\s*x\b)`)
	fillerRegex   = regexp.MustCompile(`(?i)\b(?:feminized|feminised|fem|regular|reg|autoflowering|autoflower|seeds?|strain|cannabis|marijuana|photoperiod)\b`)
	bracketRegex  = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	akaRegex      = regexp.MustCompile(`(?i)[(\[]\s*(?:aka|a\.k\.a\.?|also known as)\s*:?\s*([^)\]]*)[)\]]|\s+(?:aka|a\.k\.a\.)\s+(.+)$`)
	akaSplitRegex = regexp.MustCompile(`\s*(?:,|/|;|\bor\b)\s*`)
)

// normalizedFiller are dropped from normalized names wherever they occur.
var normalizedFiller = map[string]bool{
	"feminized": true, "feminised": true, "fem": true, "regular": true, "reg": true,
	"seeds": true, "seed": true, "strain": true, "pack": true, "autoflower": true,
	"autoflowering": true, "cannabis": true, "photoperiod": true,
}

// StrainName cleans a product title into a display strain name. Seed-type
// words, pack sizes and filler are dropped; "Auto" survives only as the
// first word of a longer name.
func StrainName(s string) string {
	s = units.Clean(s)
	s = packSizeRegex.ReplaceAllString(s, " ")
	s = fillerRegex.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for i, w := range words {
		lw := strings.ToLower(strings.Trim(w, "-|:,"))
		if (lw == "auto" || lw == "automatic") && !(i == 0 && len(words) > 1) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Trim(strings.Join(kept, " "), " -|:,")
}

// NormalizedName is the lowercase matching form of a strain name:
// parentheticals, quantities, seed-type words and punctuation other than
// '#' are removed.
func NormalizedName(s string) string {
	s = strings.ToLower(units.Clean(s))
	s = bracketRegex.ReplaceAllString(s, " ")
	s = packSizeRegex.ReplaceAllString(s, " ")
	s = strings.NewReplacer("'", "", "’", "", "`", "").Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '#' {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !normalizedFiller[w] {
			kept = append(kept, w)
		}
	}
	for len(kept) > 0 && (kept[len(kept)-1] == "auto" || kept[len(kept)-1] == "automatic") {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, " ")
}

// SimilarSpellingKey collapses a name to letters and digits only, so that
// spacing and punctuation variants compare equal.
func SimilarSpellingKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, NormalizedName(s))
}

// SplitAKA lifts "(aka ...)", "[also known as ...]" and trailing "aka ..."
// payloads out of a name. It returns the alternative names and the name
// with the payloads removed.
func SplitAKA(s string) ([]string, string) {
	var names []string
	stripped := akaRegex.ReplaceAllStringFunc(s, func(m string) string {
		sub := akaRegex.FindStringSubmatch(m)
		payload := sub[1]
		if payload == "" {
			payload = sub[2]
		}
		for _, n := range akaSplitRegex.Split(payload, -1) {
			if n = strings.Trim(n, " .\"'"); n != "" {
				names = append(names, n)
			}
		}
		return " "
	})
	return names, strings.Join(strings.Fields(stripped), " ")
}
