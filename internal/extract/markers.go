package extract

import (
	"regexp"
	"strings"
)

// Breeding status vocabulary.
const (
	StatusLandrace   = "Landrace"
	StatusHeirloom   = "Heirloom"
	StatusIBL        = "IBL"
	StatusPolyhybrid = "Polyhybrid"
	StatusHybrid     = "Hybrid"
)

var (
	generationRegex = regexp.MustCompile(`(?i)\b(F[1-9]\d?|S[1-9]|BX[1-9]?)\b`)
	hashPhenoRegex  = regexp.MustCompile(`#\s?(\d+)`)
	cutPhenoRegex   = regexp.MustCompile(`(?i)\bcut\s+([a-z0-9]{1,3})\b`)
	phenoRegex      = regexp.MustCompile(`(?i)\bpheno(?:type)?[\s\-#]*(\d+)\b`)
	crossRegex      = regexp.MustCompile(`(?i)\S\s+(?:x|×)\s+\S`)

	breedingStatusRules = []struct {
		re     *regexp.Regexp
		status string
	}{
		{regexp.MustCompile(`(?i)\blandrace\b`), StatusLandrace},
		{regexp.MustCompile(`(?i)\bheirloom\b`), StatusHeirloom},
		{regexp.MustCompile(`(?i)\b(?:ibl|inbred line|true[- ]breeding)\b`), StatusIBL},
		{regexp.MustCompile(`(?i)\b(?:poly[- ]?hybrid|multi[- ]?hybrid|three[- ]way cross)\b`), StatusPolyhybrid},
		{regexp.MustCompile(`(?i)\bhybrid\b`), StatusHybrid},
	}
)

// Generation returns the first filial marker (F1, S1, BX2, ...) in s.
func Generation(s string) string {
	m := generationRegex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Phenotype returns a selection marker such as "#4", "Cut A" or "Pheno-3".
func Phenotype(s string) string {
	if m := hashPhenoRegex.FindStringSubmatch(s); m != nil {
		return "#" + m[1]
	}
	if m := cutPhenoRegex.FindStringSubmatch(s); m != nil {
		return "Cut " + strings.ToUpper(m[1])
	}
	if m := phenoRegex.FindStringSubmatch(s); m != nil {
		return "Pheno-" + m[1]
	}
	return ""
}

// BreedingStatus infers the breeding status from lineage or name text.
// A plain "A x B" cross counts as a hybrid.
func BreedingStatus(texts ...string) string {
	for _, rule := range breedingStatusRules {
		for _, t := range texts {
			if rule.re.MatchString(t) {
				return rule.status
			}
		}
	}
	for _, t := range texts {
		if crossRegex.MatchString(t) {
			return StatusHybrid
		}
	}
	return ""
}
