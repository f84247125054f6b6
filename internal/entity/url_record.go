package entity

import "time"

// Status is the acquisition state of a URL in the progress store.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// ScrapeMethod names the acquisition method that produced an archived page.
type ScrapeMethod string

const (
	MethodDirect  ScrapeMethod = "direct"
	MethodJS      ScrapeMethod = "js"
	MethodPremium ScrapeMethod = "premium"
)

// URLRecord mirrors the `url_progress` table.
type URLRecord struct {
	URLHash         string
	OriginalURL     string
	Vendor          string
	Status          Status
	Attempts        int
	LastAttempt     *time.Time
	HTMLSize        int
	ValidationScore float64
	ArchiveKey      string
	ScrapeMethod    ScrapeMethod
	ErrorMessage    *string
}

// StatusCount is one line of the vendor/status report.
type StatusCount struct {
	Vendor        string
	Status        Status
	Count         int
	AvgAttempts   float64
	AvgValidation float64
}
