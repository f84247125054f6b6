package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

const invisible = "script, style, noscript, template, svg, iframe, head"

// Text returns the visible text of the page with whitespace collapsed.
// The document itself is left untouched.
func (p *Page) Text() string {
	body := p.Doc.Find("body")
	if body.Length() == 0 {
		body = p.Doc.Selection
	}
	clone := body.Clone()
	clone.Find(invisible).Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// VisibleText parses html and returns its visible text.
func VisibleText(html []byte) string {
	p, err := Parse(html, "")
	if err != nil {
		return ""
	}
	return p.Text()
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Compact renders the page as markdown, which keeps specification tables
// readable at a fraction of the HTML size, and cuts it to maxChars runes.
// It falls back to visible text when conversion fails.
func Compact(html []byte, sourceURL string, maxChars int) string {
	p, err := Parse(html, sourceURL)
	if err != nil {
		return ""
	}
	p.Doc.Find(invisible + ", nav, footer, header, form").Remove()
	body, err := p.Doc.Find("body").Html()
	if err != nil || body == "" {
		return cut(p.Text(), maxChars)
	}
	md, err := mdConverter.ConvertString(body, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return cut(p.Text(), maxChars)
	}
	return cut(md, maxChars)
}

func cut(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	return truncate(s, maxChars)
}
