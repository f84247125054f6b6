package repository

import (
	"context"

	"github.com/user/strain-pipeline/internal/entity"
)

// FetchRequest is what an acquisition method needs to fetch one page.
type FetchRequest struct {
	URL       string
	Vendor    string
	UserAgent string
	Proxy     string
}

// FetchResult is a page as returned by an acquisition method.
type FetchResult struct {
	HTML       []byte
	StatusCode int
	FinalURL   string
}

// AcquisitionMethod defines one strategy for fetching a product page.
type AcquisitionMethod interface {
	// Name identifies the method in the progress store and the sidecar.
	Name() entity.ScrapeMethod
	// Fetch returns the page body. Failures are *entity.FetchError.
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)
}
