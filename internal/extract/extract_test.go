package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/entity"
)

func TestStrainName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Gelato Auto Feminized Seeds", "Gelato"},
		{"Auto Blackberry Kush Autoflowering Seeds - 5 Seeds", "Auto Blackberry Kush"},
		{"Wedding Cake Feminised (3 Seeds)", "Wedding Cake"},
		{"Northern Lights Regular Cannabis Seeds x10", "Northern Lights"},
		{"Kaliâ€™s Lullaby Fem", "Kali's Lullaby"},
		{"Girl Scout Cookies #4 Strain", "Girl Scout Cookies #4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, StrainName(tt.in))
		})
	}
}

func TestNormalizedName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Night Night (aka Kali's Lullaby)", "night night"},
		{"Gelato #33 Feminized Seeds", "gelato #33"},
		{"Blue Dream Auto", "blue dream"},
		{"Wedding Cake - 5 Pack", "wedding cake"},
		{"Grand-Daddy Purple [Regular]", "grand daddy purple"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizedName(tt.in))
		})
	}
}

func TestSimilarSpellingKey(t *testing.T) {
	want := SimilarSpellingKey("Grand Daddy Purple")
	require.Equal(t, "granddaddypurple", want)
	require.Equal(t, want, SimilarSpellingKey("granddaddypurple"))
	require.Equal(t, want, SimilarSpellingKey("grand-daddy-purple"))
	require.Equal(t, want, SimilarSpellingKey("Grand_Daddy Purple"))
}

func TestSplitAKA(t *testing.T) {
	names, rest := SplitAKA("Night Night (aka Kali's Lullaby)")
	require.Equal(t, []string{"Kali's Lullaby"}, names)
	require.Equal(t, "Night Night", rest)

	names, rest = SplitAKA("Purple Punch [also known as PP, Purple P]")
	require.Equal(t, []string{"PP", "Purple P"}, names)
	require.Equal(t, "Purple Punch", rest)

	names, rest = SplitAKA("Zkittlez")
	require.Empty(t, names)
	require.Equal(t, "Zkittlez", rest)

	again, rest2 := SplitAKA(rest)
	require.Empty(t, again)
	require.Equal(t, rest, rest2)
}

func TestMarkers(t *testing.T) {
	require.Equal(t, "F1", Generation("Gelato x Runtz f1 hybrid"))
	require.Equal(t, "BX2", Generation("Backcrossed BX2 line"))
	require.Equal(t, "", Generation("Blue Dream"))

	require.Equal(t, "#4", Phenotype("Girl Scout Cookies #4"))
	require.Equal(t, "Cut A", Phenotype("Chem Dog cut a"))
	require.Equal(t, "Pheno-3", Phenotype("Runtz Pheno 3"))

	require.Equal(t, StatusLandrace, BreedingStatus("Afghan landrace from Mazar"))
	require.Equal(t, StatusIBL, BreedingStatus("Stable IBL"))
	require.Equal(t, StatusPolyhybrid, BreedingStatus("A poly-hybrid of three cultivars"))
	require.Equal(t, StatusHybrid, BreedingStatus("Gelato x Wedding Cake"))
	require.Equal(t, "", BreedingStatus("Blue Dream"))
}

const productPage = `<html><head><title>Gelato 33 Feminized Seeds | Attitude</title>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":"BreadcrumbList"},{"@type":["Product"],"name":"Gelato 33 Feminized","brand":{"@type":"Brand","name":"Barney's Farm"},"additionalProperty":[{"name":"Flowering Time","value":"8-9 weeks"},{"name":"Yield Indoor","value":550}]}]}</script>
</head><body>
<ul class="breadcrumbs"><li><a href="/">Home</a></li><li><a href="/seeds">Cannabis Seeds</a></li><li><a href="/barneys">Barney's Farm</a></li><li>Gelato 33</li></ul>
<h1>Gelato 33 Feminized Seeds</h1>
<table id="specs">
<tr><th>THC Content:</th><td>20-25%</td></tr>
<tr><th>Genetics</th><td>Sunset Sherbet x Thin Mint GSC</td></tr>
<tr><th>Seedbank</th><td>Barney's Farm</td></tr>
</table>
<ul class="attrs"><li><strong>Height Indoor:</strong> 100-120 cm</li><li>Effects: Relaxed, Happy</li></ul>
<div class="description"><p>A cross of Sunset Sherbet and Thin Mint. CBD below 1%. 60% Indica.</p></div>
<script>var x = "THC 99%";</script>
</body></html>`

func TestExtractionMethods(t *testing.T) {
	p, err := Parse([]byte(productPage), "https://attitude.example/gelato-33-feminized-seeds")
	require.NoError(t, err)

	rec := entity.NewRawRecord("attitude", p.URL, "html/0123456789abcdef.html")
	Table(p, rec, "#specs tr")
	Attributes(p, rec, ".attrs li")
	JSONLD(p, rec)
	Title(p, rec, "h1")
	Description(p, rec, ".description")
	Slug(p, rec)

	require.Equal(t, "20-25%", rec.Get("thc_content"))
	require.Equal(t, "Sunset Sherbet x Thin Mint GSC", rec.Get("genetics"))
	require.Equal(t, "100-120 cm", rec.Get("height_indoor"))
	require.Equal(t, "Relaxed, Happy", rec.Get("effects"))
	require.Equal(t, "Barney's Farm", rec.Get("brand"))
	require.Equal(t, "8-9 weeks", rec.Get("flowering_time"))
	require.Equal(t, "550", rec.Get("yield_indoor"))
	require.Equal(t, "Gelato 33", rec.Get("strain_name"))
	require.Equal(t, "Feminized", rec.Get("seed_type"))
	require.Equal(t, "60", rec.Get("indica"))
	require.Empty(t, rec.Get("thc"), "the THC rule must not read script text")
	require.Equal(t, []string{
		entity.ExtractAttributes, entity.ExtractDescription, entity.ExtractJSONLD, entity.ExtractTable,
	}, rec.Methods())
}

func TestSlugFallback(t *testing.T) {
	p, err := Parse([]byte(`<html><body><p>nothing</p></body></html>`), "https://v.example/shop/blue-dream-auto-feminized-seeds/")
	require.NoError(t, err)
	rec := entity.NewRawRecord("v", p.URL, "")
	Slug(p, rec)
	require.Equal(t, "Blue Dream", rec.Get("strain_name"))
	require.Equal(t, []string{entity.ExtractSlug}, rec.Methods())
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"blue dream", "Blue Dream"},
		{"élan vital", "Élan Vital"},
		{"ñoño kush", "Ñoño Kush"},
		{"  gelato   41 ", "Gelato 41"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, titleCase(tt.in))
		})
	}
}

func TestBreederStrategies(t *testing.T) {
	p, err := Parse([]byte(productPage), "")
	require.NoError(t, err)

	require.Equal(t, "Barney's Farm", Breadcrumb(".breadcrumbs li")(p))
	require.Equal(t, "Barney's Farm", LabeledCell("#specs tr", "Seedbank", "Brand")(p))
	require.Equal(t, "Barney's Farm", JSONLDBrand()(p))
	require.Equal(t, "", LabeledCell("#specs tr", "Breeder")(p))

	heading, err := Parse([]byte(`<h1>Ethos Genetics - Mandarin Cookies</h1><span class="crumb">Runtz – Cookies Fam</span>`), "")
	require.NoError(t, err)
	require.Equal(t, "Ethos Genetics", BreederThenStrain("h1")(heading))
	require.Equal(t, "Cookies Fam", StrainThenBreeder("span.crumb")(heading))
}

func TestVisibleTextSkipsScripts(t *testing.T) {
	text := VisibleText([]byte(productPage))
	require.Contains(t, text, "A cross of Sunset Sherbet and Thin Mint.")
	require.NotContains(t, text, "var x")
}

func TestCompactKeepsTables(t *testing.T) {
	md := Compact([]byte(productPage), "https://attitude.example/p", 0)
	require.Contains(t, md, "Gelato 33")
	require.Contains(t, md, "20-25%")
	require.NotContains(t, md, "var x")

	short := Compact([]byte(productPage), "https://attitude.example/p", 20)
	require.LessOrEqual(t, len([]rune(short)), 20)
}
