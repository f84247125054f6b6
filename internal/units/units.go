// Package units parses free-text quantities found on vendor pages (ranges,
// mixed units, decorations) and converts them to the canonical units of the
// cleaned dataset: days, centimeters, grams and grams per square meter.
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Conversion factors to canonical units.
const (
	DaysPerWeek      = 7.0
	DaysPerMonth     = 30.0
	CMPerFoot        = 30.48
	CMPerInch        = 2.54
	CMPerMeter       = 100.0
	GramsPerOunce    = 28.35
	GramsPerKilogram = 1000.0
	// GM2PerOzFt2 converts oz/ft² to g/m².
	GM2PerOzFt2 = 305.15
)

// Yield units of the cleaned dataset.
const (
	YieldPerArea  = "g/m2"
	YieldPerPlant = "g"
)

// Range is a closed numeric interval. Single values have Min == Max.
type Range struct {
	Min float64
	Max float64
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 {
	return Round((r.Min + r.Max) / 2)
}

// Single reports whether the range holds a single value.
func (r Range) Single() bool {
	return r.Min == r.Max
}

func (r Range) scale(f float64) Range {
	return Range{Min: Round(r.Min * f), Max: Round(r.Max * f)}
}

// Round rounds to two decimals, which absorbs float noise from conversions.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	numberPattern  = `(\d+(?:,\d{3})*(?:[.,]\d+)?)`
	rangeRegex     = regexp.MustCompile(numberPattern + `\s*(?:-|–|—|~|to|/)\s*` + numberPattern)
	numberRegex    = regexp.MustCompile(numberPattern)
	thousandsRegex = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

// parseNumber reads "1,000" and "1,000.5" with thousands separators and
// any other comma as a decimal point ("1,5").
func parseNumber(s string) (float64, bool) {
	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Numbers parses the first range (or single number) in s and returns the
// text that follows it, where the unit usually lives.
func Numbers(s string) (Range, string, bool) {
	s = Clean(s)
	if loc := rangeRegex.FindStringSubmatchIndex(s); loc != nil {
		lo, ok1 := parseNumber(s[loc[2]:loc[3]])
		hi, ok2 := parseNumber(s[loc[4]:loc[5]])
		if ok1 && ok2 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return Range{Min: lo, Max: hi}, strings.TrimSpace(s[loc[1]:]), true
		}
	}
	if loc := numberRegex.FindStringSubmatchIndex(s); loc != nil {
		v, ok := parseNumber(s[loc[2]:loc[3]])
		if ok {
			return Range{Min: v, Max: v}, strings.TrimSpace(s[loc[1]:]), true
		}
	}
	return Range{}, "", false
}

// Clean repairs common mojibake and normalizes whitespace and dashes.
func Clean(s string) string {
	r := strings.NewReplacer(
		"â€“", "-", "â€”", "-", "â€™", "'", "Â", "", " ", " ",
		"–", "-", "—", "-", "½", ".5", "¼", ".25", "¾", ".75",
	)
	return strings.Join(strings.Fields(r.Replace(s)), " ")
}

// Days parses a duration such as "8-10 weeks", "56-63 days" or "2 months".
// Bare numbers up to 20 are read as weeks, larger ones as days.
func Days(s string) (Range, bool) {
	r, rest, ok := Numbers(s)
	if !ok {
		return Range{}, false
	}
	unit := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(unit, "w"):
		return r.scale(DaysPerWeek), true
	case strings.HasPrefix(unit, "d"):
		return r.scale(1), true
	case strings.HasPrefix(unit, "mo"):
		return r.scale(DaysPerMonth), true
	}
	if lower := strings.ToLower(s); strings.Contains(lower, "week") {
		return r.scale(DaysPerWeek), true
	} else if strings.Contains(lower, "day") {
		return r.scale(1), true
	}
	if r.Max <= 20 {
		return r.scale(DaysPerWeek), true
	}
	return r.scale(1), true
}

// Centimeters parses a height such as "60-100 cm", "5 ft", "1.5 m" or "30 in".
// Bare numbers are read as centimeters.
func Centimeters(s string) (Range, bool) {
	r, rest, ok := Numbers(s)
	if !ok {
		return Range{}, false
	}
	unit := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(unit, "cm"):
		return r.scale(1), true
	case strings.HasPrefix(unit, "ft"), strings.HasPrefix(unit, "feet"), strings.HasPrefix(unit, "foot"), strings.HasPrefix(unit, "'"):
		return r.scale(CMPerFoot), true
	case strings.HasPrefix(unit, "in"), strings.HasPrefix(unit, "\""):
		return r.scale(CMPerInch), true
	case strings.HasPrefix(unit, "m"):
		return r.scale(CMPerMeter), true
	}
	return r.scale(1), true
}

// Yield parses a yield such as "450-550 g/m2", "1.5 oz/ft²" or "600 g/plant"
// and returns it in g/m² or grams per plant together with the unit.
func Yield(s string) (Range, string, bool) {
	r, rest, ok := Numbers(s)
	if !ok {
		return Range{}, "", false
	}
	unit := strings.ToLower(strings.ReplaceAll(rest, " ", ""))
	perArea := strings.Contains(unit, "m2") || strings.Contains(unit, "m²") ||
		strings.Contains(unit, "ft2") || strings.Contains(unit, "ft²") ||
		strings.Contains(unit, "sqft") || strings.Contains(unit, "sq.ft") ||
		strings.Contains(unit, "persquare") || strings.Contains(unit, "/m")
	ounces := strings.HasPrefix(unit, "oz") || strings.HasPrefix(unit, "ounce")
	kilos := strings.HasPrefix(unit, "kg")

	switch {
	case perArea && ounces:
		return r.scale(GM2PerOzFt2), YieldPerArea, true
	case perArea:
		return r.scale(1), YieldPerArea, true
	case ounces:
		return r.scale(GramsPerOunce), YieldPerPlant, true
	case kilos:
		return r.scale(GramsPerKilogram), YieldPerPlant, true
	}
	return r.scale(1), YieldPerPlant, true
}

// Percent parses a cannabinoid or ratio value such as "20%", "18-22 %" or
// "0.5". explicit reports whether a percent sign was present.
func Percent(s string) (r Range, explicit bool, ok bool) {
	r, rest, ok := Numbers(s)
	if !ok {
		return Range{}, false, false
	}
	explicit = strings.HasPrefix(rest, "%") || strings.Contains(s, "%")
	return Range{Min: Round(r.Min), Max: Round(r.Max)}, explicit, true
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
