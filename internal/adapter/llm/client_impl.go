package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/user/strain-pipeline/internal/entity"
	"go.uber.org/zap"
)

// Options configures the validation model client.
type Options struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Retries  int
}

// ClientImpl posts batches of rows to an HTTP model endpoint. The endpoint
// receives {"model", "rows": [...]} and answers {"verdicts": [...]}.
type ClientImpl struct {
	http   *resty.Client
	model  string
	logger *zap.Logger
}

type batchRequest struct {
	Model string                     `json:"model"`
	Rows  []entity.ValidationRequest `json:"rows"`
}

type batchResponse struct {
	Verdicts []entity.Verdict `json:"verdicts"`
}

// NewClient creates the model client. Transient failures (transport, 429, 5xx)
// are retried by resty with exponential wait.
func NewClient(opts Options, logger *zap.Logger) *ClientImpl {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	client := resty.New().
		SetBaseURL(opts.Endpoint).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := res.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	return &ClientImpl{http: client, model: opts.Model, logger: logger}
}

// Validate implements repository.ValidationModel.
func (c *ClientImpl) Validate(ctx context.Context, batch []entity.ValidationRequest) ([]entity.Verdict, error) {
	var out batchResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(batchRequest{Model: c.model, Rows: batch}).
		SetResult(&out).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("model request: status %d", res.StatusCode())
	}

	byID := make(map[string]entity.Verdict, len(out.Verdicts))
	for _, v := range out.Verdicts {
		byID[v.StrainID] = v
	}

	verdicts := make([]entity.Verdict, len(batch))
	for i, req := range batch {
		v, ok := byID[req.StrainID]
		switch {
		case !ok:
			v = entity.Verdict{StrainID: req.StrainID, Err: "no verdict returned"}
		case v.Confidence < 0 || v.Confidence > 1:
			c.logger.Warn("Discarding verdict with out-of-range confidence",
				zap.String("strain_id", req.StrainID), zap.Float64("confidence", v.Confidence))
			v = entity.Verdict{StrainID: req.StrainID, Err: "confidence out of range"}
		}
		verdicts[i] = v
	}
	return verdicts, nil
}
