package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/pkg/utils"
)

// Page is a parsed product page.
type Page struct {
	URL string
	Doc *goquery.Document
}

// Parse parses page HTML.
func Parse(html []byte, url string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Page{URL: url, Doc: doc}, nil
}

var labelRegex = regexp.MustCompile(`[^a-z0-9]+`)

// LabelKey snake_cases a vendor label ("THC Content:" -> "thc_content").
func LabelKey(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimRight(label, ": ")
	return strings.Trim(labelRegex.ReplaceAllString(label, "_"), "_")
}

func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

var (
	autoTitleRegex = regexp.MustCompile(`(?i)\bauto(?:flower(?:ing)?|matic)?\b`)
	femTitleRegex  = regexp.MustCompile(`(?i)\bfemini[sz]ed\b|\bfem\b`)
	regTitleRegex  = regexp.MustCompile(`(?i)\bregular\b`)
)

// SeedTypeHint reads the seed type a product title advertises.
func SeedTypeHint(title string) string {
	switch {
	case autoTitleRegex.MatchString(title):
		return "Autoflower"
	case femTitleRegex.MatchString(title):
		return "Feminized"
	case regTitleRegex.MatchString(title):
		return "Regular"
	}
	return ""
}

// Title reads the product title from selector into strain_name, and into
// seed_type when the title advertises one and no other method found it.
func Title(p *Page, rec *entity.RawRecord, selector string) {
	if selector == "" {
		return
	}
	title := cleanText(p.Doc.Find(selector).First())
	if name := StrainName(title); name != "" {
		rec.Set("strain_name", name, entity.ExtractAttributes)
	}
	rec.Set("seed_type", SeedTypeHint(title), entity.ExtractAttributes)
}

// Table reads two-column specification rows: the first cell is the label
// and the last cell the value.
func Table(p *Page, rec *entity.RawRecord, rowSelector string) {
	if rowSelector == "" {
		return
	}
	p.Doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := LabelKey(cleanText(cells.First()))
		rec.Set(label, cleanText(cells.Last()), entity.ExtractTable)
	})
}

// Attributes reads attribute lists: <dt>/<dd> pairs or items written as
// "Label: value".
func Attributes(p *Page, rec *entity.RawRecord, selector string) {
	if selector == "" {
		return
	}
	p.Doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
		if goquery.NodeName(item) == "dt" {
			rec.Set(LabelKey(cleanText(item)), cleanText(item.NextFiltered("dd")), entity.ExtractAttributes)
			return
		}
		if label := item.Find(".label, strong, b").First(); label.Length() > 0 {
			l := cleanText(label)
			v := strings.TrimSpace(strings.TrimPrefix(cleanText(item), l))
			if v = strings.TrimSpace(strings.TrimPrefix(v, ":")); v != "" {
				rec.Set(LabelKey(l), v, entity.ExtractAttributes)
				return
			}
		}
		text := cleanText(item)
		if i := strings.Index(text, ":"); i > 0 && i < 40 {
			rec.Set(LabelKey(text[:i]), strings.TrimSpace(text[i+1:]), entity.ExtractAttributes)
		}
	})
}

// Product is the subset of a schema.org Product a page may embed.
type Product struct {
	Name         string
	Description  string
	Brand        string
	Manufacturer string
	Properties   map[string]string
}

// JSONLDProduct returns the first schema.org Product embedded in the page.
func JSONLDProduct(p *Page) (*Product, bool) {
	var found *Product
	p.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var doc any
		if err := json.Unmarshal([]byte(s.Text()), &doc); err != nil {
			return true
		}
		if obj := findProduct(doc); obj != nil {
			found = toProduct(obj)
			return false
		}
		return true
	})
	return found, found != nil
}

func findProduct(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if obj := findProduct(item); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if isType(t["@type"], "Product") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func nameOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if s, ok := t["name"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		if len(t) > 0 {
			return nameOf(t[0])
		}
	}
	return ""
}

func toProduct(obj map[string]any) *Product {
	p := &Product{Properties: map[string]string{}}
	p.Name, _ = obj["name"].(string)
	p.Description, _ = obj["description"].(string)
	p.Brand = nameOf(obj["brand"])
	p.Manufacturer = nameOf(obj["manufacturer"])
	if props, ok := obj["additionalProperty"].([]any); ok {
		for _, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := prop["name"].(string)
			switch val := prop["value"].(type) {
			case string:
				p.Properties[LabelKey(name)] = val
			case float64:
				p.Properties[LabelKey(name)] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
	}
	return p
}

// JSONLD copies the embedded Product into the record.
func JSONLD(p *Page, rec *entity.RawRecord) {
	prod, ok := JSONLDProduct(p)
	if !ok {
		return
	}
	rec.Set("strain_name", StrainName(prod.Name), entity.ExtractJSONLD)
	rec.Set("brand", prod.Brand, entity.ExtractJSONLD)
	rec.Set("manufacturer", prod.Manufacturer, entity.ExtractJSONLD)
	rec.Set("description", truncate(prod.Description, 2000), entity.ExtractJSONLD)
	for k, v := range prod.Properties {
		rec.Set(k, v, entity.ExtractJSONLD)
	}
}

var descriptionRules = []struct {
	column string
	re     *regexp.Regexp
}{
	{"thc", regexp.MustCompile(`(?i)\bTHC\b[^0-9%]{0,25}(\d+(?:\.\d+)?\s*(?:-|–|to)?\s*(?:\d+(?:\.\d+)?)?\s*%)`)},
	{"cbd", regexp.MustCompile(`(?i)\bCBD\b[^0-9%]{0,25}(\d+(?:\.\d+)?\s*(?:-|–|to)?\s*(?:\d+(?:\.\d+)?)?\s*%)`)},
	{"flowering_time", regexp.MustCompile(`(?i)\bflower(?:ing)?\s*(?:time|period)?[^0-9.]{0,25}(\d+\s*(?:-|–|to)\s*\d+\s*(?:weeks|days)|\d+\s*(?:weeks|days))`)},
	{"yield_indoor", regexp.MustCompile(`(?i)\bindoors?\b[^.0-9]{0,40}?(\d+(?:\.\d+)?\s*(?:-|–|to)?\s*(?:\d+(?:\.\d+)?)?\s*(?:g/m2|g/m²|gr/m2|oz/ft2|oz/ft²|grams? per square met(?:er|re)))`)},
	{"yield_outdoor", regexp.MustCompile(`(?i)\boutdoors?\b[^.0-9]{0,40}?(\d+(?:\.\d+)?\s*(?:-|–|to)?\s*(?:\d+(?:\.\d+)?)?\s*(?:g/plant|grams? per plant|g|oz|kg))\b`)},
	{"genetics", regexp.MustCompile(`(?:cross(?:ing)? (?:of|between)|[Gg]enetics:|[Ll]ineage:|[Pp]arents:)\s*([A-Z0-9][^.\n]{2,80}?)(?:\.|\n|$)`)},
	{"sativa", regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*sativa`)},
	{"indica", regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*indica`)},
}

// Description runs the free-text rules over the description block (or the
// page's visible text when selector matches nothing).
func Description(p *Page, rec *entity.RawRecord, selector string) {
	text := ""
	if selector != "" {
		text = cleanText(p.Doc.Find(selector))
	}
	if text == "" {
		text = p.Text()
	}
	if text == "" {
		return
	}
	for _, rule := range descriptionRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			rec.Set(rule.column, m[1], entity.ExtractDescription)
		}
	}
	if selector != "" {
		rec.Set("description", truncate(cleanText(p.Doc.Find(selector)), 2000), entity.ExtractDescription)
	}
}

// Slug falls back to the URL slug for the strain name.
func Slug(p *Page, rec *entity.RawRecord) {
	if rec.Get("strain_name") != "" {
		return
	}
	slug := strings.NewReplacer("-", " ", "_", " ").Replace(utils.Slug(p.URL))
	if name := StrainName(titleCase(slug)); name != "" {
		rec.Set("strain_name", name, entity.ExtractSlug)
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
