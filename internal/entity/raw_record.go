package entity

import (
	"sort"
	"strings"
	"time"
)

// Extraction method tags recorded on every raw record.
const (
	ExtractTable       = "table"
	ExtractAttributes  = "attributes"
	ExtractJSONLD      = "jsonld"
	ExtractDescription = "description"
	ExtractSlug        = "slug"
	ExtractHardcoded   = "hardcoded"
)

// RawRecord is one vendor-shaped row produced by an extractor. Columns are
// named after the vendor's own labels (snake_cased); missing is simply absent.
type RawRecord struct {
	Vendor     string
	SourceURL  string
	ArchiveKey string
	ScrapedAt  time.Time
	Fields     map[string]string
	methods    map[string]struct{}
}

// NewRawRecord returns an empty record for vendor.
func NewRawRecord(vendor, sourceURL, archiveKey string) *RawRecord {
	return &RawRecord{
		Vendor:     vendor,
		SourceURL:  sourceURL,
		ArchiveKey: archiveKey,
		Fields:     map[string]string{},
		methods:    map[string]struct{}{},
	}
}

// Set stores value under column unless the column is already filled or the
// value is blank. Earlier methods take precedence over later ones.
func (r *RawRecord) Set(column, value, method string) bool {
	value = strings.TrimSpace(value)
	if column == "" || value == "" {
		return false
	}
	if _, ok := r.Fields[column]; ok {
		return false
	}
	r.Fields[column] = value
	if method != "" {
		r.methods[method] = struct{}{}
	}
	return true
}

// Override replaces a column unconditionally; used for hardcoded vendor facts.
func (r *RawRecord) Override(column, value, method string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	r.Fields[column] = strings.TrimSpace(value)
	if method != "" {
		r.methods[method] = struct{}{}
	}
}

// Get returns the column value or "".
func (r *RawRecord) Get(column string) string {
	return r.Fields[column]
}

// Methods returns the contributing extraction methods, sorted.
func (r *RawRecord) Methods() []string {
	out := make([]string, 0, len(r.methods))
	for m := range r.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether no field was extracted.
func (r *RawRecord) Empty() bool {
	return len(r.Fields) == 0
}
