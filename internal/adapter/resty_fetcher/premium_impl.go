package resty_fetcher

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
)

// PremiumFetcher routes the request through a scraping-proxy API that takes
// the target as a query parameter. The vendor behind Endpoint is interchangeable.
type PremiumFetcher struct {
	client *resty.Client
	apiKey string
}

// NewPremiumFetcher creates the premium acquisition method.
func NewPremiumFetcher(endpoint, apiKey string, timeout time.Duration) *PremiumFetcher {
	return &PremiumFetcher{
		client: resty.New().SetBaseURL(endpoint).SetTimeout(timeout),
		apiKey: apiKey,
	}
}

// Name implements repository.AcquisitionMethod.
func (f *PremiumFetcher) Name() entity.ScrapeMethod { return entity.MethodPremium }

// Fetch implements repository.AcquisitionMethod.
func (f *PremiumFetcher) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":      f.apiKey,
			"url":          req.URL,
			"premium":      "true",
			"keep_headers": "false",
		}).
		Get("")
	out, err := toResult(entity.MethodPremium, res, err)
	if err != nil {
		return nil, err
	}
	out.FinalURL = req.URL
	return out, nil
}
