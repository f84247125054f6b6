package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed curated.yaml
var defaultCurated []byte

// BreederAliases is the breeder canonicalization table used by stage 10e.
type BreederAliases struct {
	// SuffixRemovals are exact trailing strings dropped before lookup.
	SuffixRemovals []string `yaml:"suffix_removals"`
	// Canonical maps a lowercased spelling to the canonical breeder name.
	Canonical map[string]string `yaml:"canonical"`
	// Collaborations maps a lowercased multi-breeder string to its canonical form.
	Collaborations map[string]string `yaml:"collaborations"`
}

// Curated holds the hand-maintained lists that drive the cleaning stages.
// They are incomplete by nature and live outside the code.
type Curated struct {
	PlaceholderTokens      []string       `yaml:"placeholder_tokens"`
	NonProductNames        []string       `yaml:"non_product_names"`
	PromoTags              []string       `yaml:"promo_tags"`
	VendorPrefixes         []string       `yaml:"vendor_prefixes"`
	NonCannabisURLPatterns []string       `yaml:"non_cannabis_url_patterns"`
	NonCannabisBreeders    []string       `yaml:"non_cannabis_breeders"`
	BadDuplicateVendors    []string       `yaml:"bad_duplicate_vendors"`
	BreederAliases         BreederAliases `yaml:"breeder_aliases"`
}

// LoadCurated parses the embedded defaults and merges the optional override file.
// Lists from the override are appended; map entries override defaults.
func LoadCurated(path string) (*Curated, error) {
	var cur Curated
	if err := yaml.Unmarshal(defaultCurated, &cur); err != nil {
		return nil, fmt.Errorf("parse embedded curated lists: %w", err)
	}
	if path == "" {
		return &cur, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curated file %s: %w", path, err)
	}
	var extra Curated
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("parse curated file %s: %w", path, err)
	}
	cur.merge(&extra)
	return &cur, nil
}

func (c *Curated) merge(o *Curated) {
	c.PlaceholderTokens = append(c.PlaceholderTokens, o.PlaceholderTokens...)
	c.NonProductNames = append(c.NonProductNames, o.NonProductNames...)
	c.PromoTags = append(c.PromoTags, o.PromoTags...)
	c.VendorPrefixes = append(c.VendorPrefixes, o.VendorPrefixes...)
	c.NonCannabisURLPatterns = append(c.NonCannabisURLPatterns, o.NonCannabisURLPatterns...)
	c.NonCannabisBreeders = append(c.NonCannabisBreeders, o.NonCannabisBreeders...)
	c.BadDuplicateVendors = append(c.BadDuplicateVendors, o.BadDuplicateVendors...)
	c.BreederAliases.SuffixRemovals = append(c.BreederAliases.SuffixRemovals, o.BreederAliases.SuffixRemovals...)
	if c.BreederAliases.Canonical == nil {
		c.BreederAliases.Canonical = map[string]string{}
	}
	for k, v := range o.BreederAliases.Canonical {
		c.BreederAliases.Canonical[k] = v
	}
	if c.BreederAliases.Collaborations == nil {
		c.BreederAliases.Collaborations = map[string]string{}
	}
	for k, v := range o.BreederAliases.Collaborations {
		c.BreederAliases.Collaborations[k] = v
	}
}
