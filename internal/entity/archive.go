package entity

import (
	"strings"
	"time"

	"github.com/user/strain-pipeline/pkg/utils"
)

// Archive keyspaces.
const (
	PrefixHTML     = "html/"
	PrefixHTMLJS   = "html_js/"
	PrefixMetadata = "metadata/"
	PrefixLegacy   = "pipeline06/"
)

// ArchiveMetadata is the JSON sidecar stored next to every archived page.
type ArchiveMetadata struct {
	OriginalURL      string          `json:"original_url"`
	URLHash          string          `json:"url_hash"`
	Vendor           string          `json:"vendor"`
	CollectionDate   time.Time       `json:"collection_date"`
	ScrapeMethod     ScrapeMethod    `json:"scrape_method"`
	HTMLSize         int             `json:"html_size"`
	ValidationScore  float64         `json:"validation_score"`
	ValidationChecks map[string]bool `json:"validation_checks"`
}

// HTMLKey returns the archive key a page fetched with method is stored under.
func HTMLKey(urlHash string, method ScrapeMethod) string {
	if method == MethodJS {
		return PrefixHTMLJS + urlHash + "_js.html"
	}
	return PrefixHTML + urlHash + ".html"
}

// LegacyKey returns the key of a page in the legacy keyspace.
func LegacyKey(urlHash string) string {
	return PrefixLegacy + urlHash + ".html"
}

// MetadataKey returns the sidecar key of urlHash.
func MetadataKey(urlHash string) string {
	return PrefixMetadata + urlHash + ".json"
}

// HashFromKey extracts the url_hash embedded in any archive key, or "".
func HashFromKey(key string) string {
	i := strings.LastIndex(key, "/")
	name := key[i+1:]
	if dot := strings.Index(name, "."); dot >= 0 {
		name = name[:dot]
	}
	name = strings.TrimSuffix(name, "_js")
	if !utils.IsURLHash(name) {
		return ""
	}
	return name
}

// IsJSKey reports whether key lives in the JS-rendered keyspace.
func IsJSKey(key string) bool {
	return strings.HasPrefix(key, PrefixHTMLJS)
}

// InventoryEntry is one URL of the archive inventory derived from sidecars.
type InventoryEntry struct {
	URLHash         string
	OriginalURL     string
	Vendor          string
	CollectionDate  time.Time
	ScrapeMethod    ScrapeMethod
	ValidationScore float64

	// HTMLKey is the preferred static capture (html/ over pipeline06/).
	HTMLKey string
	// JSKey is the JS-rendered capture, if any.
	JSKey string
}

// Keys returns every capture key of the entry, static first.
func (e *InventoryEntry) Keys() []string {
	var keys []string
	if e.HTMLKey != "" {
		keys = append(keys, e.HTMLKey)
	}
	if e.JSKey != "" {
		keys = append(keys, e.JSKey)
	}
	return keys
}

// PreferredKey is the capture used for single-document reads (JS first).
func (e *InventoryEntry) PreferredKey() string {
	if e.JSKey != "" {
		return e.JSKey
	}
	return e.HTMLKey
}
