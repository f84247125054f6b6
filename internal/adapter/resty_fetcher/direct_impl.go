package resty_fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
)

// DirectFetcher performs a plain HTTP GET, optionally through a rotating proxy.
type DirectFetcher struct {
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*resty.Client // keyed by proxy URL, "" for none
}

// NewDirectFetcher creates the direct acquisition method.
func NewDirectFetcher(timeout time.Duration) *DirectFetcher {
	return &DirectFetcher{timeout: timeout, clients: map[string]*resty.Client{}}
}

// Name implements repository.AcquisitionMethod.
func (f *DirectFetcher) Name() entity.ScrapeMethod { return entity.MethodDirect }

// Fetch implements repository.AcquisitionMethod.
func (f *DirectFetcher) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	res, err := f.client(req.Proxy).R().
		SetContext(ctx).
		SetHeader("User-Agent", req.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		Get(req.URL)
	return toResult(entity.MethodDirect, res, err)
}

func (f *DirectFetcher) client(proxy string) *resty.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[proxy]; ok {
		return c
	}
	c := resty.New().
		SetTimeout(f.timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if proxy != "" {
		c.SetProxy(proxy)
	}
	f.clients[proxy] = c
	return c
}

func toResult(method entity.ScrapeMethod, res *resty.Response, err error) (*repository.FetchResult, error) {
	if err != nil {
		return nil, &entity.FetchError{Kind: classify(err), Method: method, Err: err}
	}
	if kind := entity.KindForStatus(res.StatusCode()); kind != "" {
		return nil, &entity.FetchError{
			Kind:       kind,
			Method:     method,
			StatusCode: res.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", http.StatusText(res.StatusCode())),
		}
	}
	final := ""
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL.String()
	}
	return &repository.FetchResult{
		HTML:       res.Body(),
		StatusCode: res.StatusCode(),
		FinalURL:   final,
	}, nil
}

func classify(err error) entity.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return entity.FailureTimeout
	}
	return entity.FailureTransport
}
