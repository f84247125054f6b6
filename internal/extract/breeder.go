package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BreederFunc reads the breeder from a page, or returns "".
type BreederFunc func(p *Page) string

var breadcrumbSkip = map[string]bool{
	"home": true, "shop": true, "seeds": true, "cannabis": true, "products": true,
	"cannabis seeds": true, "marijuana seeds": true, "all seeds": true, "store": true,
	"breeders": true, "brands": true, "seed banks": true, "seedbanks": true,
}

// Breadcrumb takes the second-to-last breadcrumb item after dropping
// generic navigation entries; the last item is the product itself.
func Breadcrumb(selector string) BreederFunc {
	return func(p *Page) string {
		var crumbs []string
		p.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.Trim(cleanText(s), " >/»|")
			if text != "" && !breadcrumbSkip[strings.ToLower(text)] {
				crumbs = append(crumbs, text)
			}
		})
		if len(crumbs) < 2 {
			return ""
		}
		return crumbs[len(crumbs)-2]
	}
}

// LabeledCell reads the cell paired with one of labels ("Seedbank:",
// "Brand:", ...) in rows matched by rowSelector. Rows may be table rows or
// list items written as "Label: value".
func LabeledCell(rowSelector string, labels ...string) BreederFunc {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[LabelKey(l)] = true
	}
	return func(p *Page) string {
		var out string
		p.Doc.Find(rowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.Find("th, td")
			if cells.Length() >= 2 {
				if want[LabelKey(cleanText(cells.First()))] {
					out = cleanText(cells.Last())
				}
				return out == ""
			}
			if goquery.NodeName(row) == "dt" && want[LabelKey(cleanText(row))] {
				out = cleanText(row.NextFiltered("dd"))
				return out == ""
			}
			text := cleanText(row)
			if i := strings.Index(text, ":"); i > 0 && want[LabelKey(text[:i])] {
				out = strings.TrimSpace(text[i+1:])
			}
			return out == ""
		})
		return out
	}
}

// JSONLDBrand reads brand.name, then manufacturer.name, of the embedded Product.
func JSONLDBrand() BreederFunc {
	return func(p *Page) string {
		prod, ok := JSONLDProduct(p)
		if !ok {
			return ""
		}
		if prod.Brand != "" {
			return prod.Brand
		}
		return prod.Manufacturer
	}
}

var titleSeparators = []string{" – ", " — ", " - ", " | "}

func splitTitle(s string) (string, string, bool) {
	for _, sep := range titleSeparators {
		if i := strings.Index(s, sep); i > 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):]), true
		}
	}
	return "", "", false
}

// StrainThenBreeder reads "Strain – Breeder" from the last element matched
// by selector, typically the last breadcrumb span.
func StrainThenBreeder(selector string) BreederFunc {
	return func(p *Page) string {
		_, right, ok := splitTitle(cleanText(p.Doc.Find(selector).Last()))
		if !ok {
			return ""
		}
		return right
	}
}

// BreederThenStrain reads "Breeder - Strain" from the first element matched
// by selector, typically the page heading.
func BreederThenStrain(selector string) BreederFunc {
	return func(p *Page) string {
		left, _, ok := splitTitle(cleanText(p.Doc.Find(selector).First()))
		if !ok {
			return ""
		}
		return left
	}
}
