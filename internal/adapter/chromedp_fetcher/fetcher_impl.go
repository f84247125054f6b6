package chromedp_fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"go.uber.org/zap"
)

// ChromedpFetcher renders pages in a shared headless browser, one tab per fetch.
type ChromedpFetcher struct {
	timeout time.Duration
	slots   chan struct{}
	logger  *zap.Logger

	once        sync.Once
	startErr    error
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
}

// NewChromedpFetcher creates the JS-rendering acquisition method. The browser
// is started lazily on the first fetch.
func NewChromedpFetcher(maxConcurrency int, pageLoadTimeout time.Duration, logger *zap.Logger) *ChromedpFetcher {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &ChromedpFetcher{
		timeout: pageLoadTimeout,
		slots:   make(chan struct{}, maxConcurrency),
		logger:  logger,
	}
}

// Name implements repository.AcquisitionMethod.
func (c *ChromedpFetcher) Name() entity.ScrapeMethod { return entity.MethodJS }

func (c *ChromedpFetcher) start() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	// Run with no actions launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		c.startErr = fmt.Errorf("start browser: %w", err)
		return
	}
	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserStop = browserStop
}

// Fetch implements repository.AcquisitionMethod.
func (c *ChromedpFetcher) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	c.once.Do(c.start)
	if c.startErr != nil {
		return nil, &entity.FetchError{Kind: entity.FailureTransport, Method: entity.MethodJS, Err: c.startErr}
	}

	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, &entity.FetchError{Kind: entity.FailureTimeout, Method: entity.MethodJS, Err: ctx.Err()}
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	// Tie the tab to the caller's context as well.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		mu         sync.Mutex
		statusCode int
		finalURL   string
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			// The last document response wins, which follows redirects.
			mu.Lock()
			finalURL = e.Response.URL
			statusCode = int(e.Response.Status)
			mu.Unlock()
		}
	})

	var html string
	actions := []chromedp.Action{network.Enable()}
	if req.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(req.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	startTime := time.Now()
	err := chromedp.Run(tabCtx, actions...)
	elapsed := time.Since(startTime)

	if err != nil {
		kind := entity.FailureTransport
		if tabCtx.Err() == context.DeadlineExceeded || ctx.Err() != nil {
			kind = entity.FailureTimeout
		}
		c.logger.Debug("Render failed", zap.String("url", req.URL), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, &entity.FetchError{Kind: kind, Method: entity.MethodJS, Err: err}
	}

	mu.Lock()
	code, final := statusCode, finalURL
	mu.Unlock()
	if code == 0 {
		code = 200
	}
	if kind := entity.KindForStatus(code); kind != "" {
		return nil, &entity.FetchError{Kind: kind, Method: entity.MethodJS, StatusCode: code, Err: fmt.Errorf("document status %d", code)}
	}

	c.logger.Debug("Rendered page", zap.String("url", req.URL), zap.Duration("elapsed", elapsed), zap.Int("bytes", len(html)))
	return &repository.FetchResult{HTML: []byte(html), StatusCode: code, FinalURL: final}, nil
}

// Close shuts the shared browser down.
func (c *ChromedpFetcher) Close() {
	if c.browserStop != nil {
		c.browserStop()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
}
