package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/extract"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const validateStage = "llm_validate"

// Columns appended by the LLM validator.
const (
	ColLLMBreeder           = "llm_breeder"
	ColLLMConfidence        = "llm_confidence"
	ColLLMReasoning         = "llm_reasoning"
	ColLLMError             = "llm_error"
	ColBreederDisplayManual = "breeder_display_manual"
)

// ValidatorConfig tunes batching and acceptance.
type ValidatorConfig struct {
	BatchSize         int
	RequestsPerSecond float64
	Threshold         float64
	MaxChars          int
}

// ValidatorSummary counts one validation run.
type ValidatorSummary struct {
	Rows     int
	Sent     int
	Batches  int
	Accepted int
	Errors   int
}

// LLMValidator sends cleaned rows with their page text to the external
// model and appends its verdicts as new columns.
type LLMValidator struct {
	cfg     ValidatorConfig
	model   repository.ValidationModel
	archive repository.ArchiveRepository
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLLMValidator creates a validator.
func NewLLMValidator(cfg ValidatorConfig, model repository.ValidationModel, archive repository.ArchiveRepository, logger *zap.Logger) *LLMValidator {
	metrics.Init()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &LLMValidator{
		cfg:     cfg,
		model:   model,
		archive: archive,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("llm_validator"),
	}
}

// Run validates every row of in whose filter returns true (all rows when
// filter is nil) and returns a new table with the verdict columns. Cleaned
// columns and an existing breeder_display_manual are never overwritten.
func (v *LLMValidator) Run(ctx context.Context, in *table.Table, filter func(table.Row) bool) (*table.Table, ValidatorSummary, error) {
	var sum ValidatorSummary
	if !in.Has(entity.ColStrainID) {
		return nil, sum, fmt.Errorf("%w: input has no %s column", ErrPrecondition, entity.ColStrainID)
	}
	out := in.Evolve(validateStage, table.Changes{Adds: []table.Column{
		{Name: ColLLMBreeder, Type: table.TypeString},
		{Name: ColLLMConfidence, Type: table.TypeNumber},
		{Name: ColLLMReasoning, Type: table.TypeString},
		{Name: ColLLMError, Type: table.TypeString},
		{Name: ColBreederDisplayManual, Type: table.TypeString},
	}})

	rows := make([]table.Row, in.Len())
	var pending []int
	for i, r := range in.Rows() {
		rows[i] = r.Clone()
		if filter == nil || filter(r) {
			pending = append(pending, i)
		}
	}
	sum.Rows = len(rows)

	for start := 0; start < len(pending); start += v.cfg.BatchSize {
		end := start + v.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		idx := pending[start:end]
		if err := v.batch(ctx, in, rows, idx, &sum); err != nil {
			return nil, sum, err
		}
	}

	for _, r := range rows {
		if err := out.Append(r); err != nil {
			return nil, sum, err
		}
	}
	v.logger.Info("Validation finished",
		zap.Int("sent", sum.Sent),
		zap.Int("batches", sum.Batches),
		zap.Int("accepted", sum.Accepted),
		zap.Int("errors", sum.Errors),
	)
	return out, sum, nil
}

// batch validates rows[idx...]. Only cancellation is returned as an error;
// model failures are recorded on the rows.
func (v *LLMValidator) batch(ctx context.Context, in *table.Table, rows []table.Row, idx []int, sum *ValidatorSummary) error {
	reqs := make([]entity.ValidationRequest, len(idx))
	for j, i := range idx {
		reqs[j] = v.request(ctx, in, rows[i])
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}
	sum.Batches++
	sum.Sent += len(reqs)

	verdicts, err := v.model.Validate(ctx, reqs)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.LLMCallsTotal.WithLabelValues("error").Inc()
		v.logger.Warn("Validation batch failed", zap.Int("rows", len(reqs)), zap.Error(err))
		for _, i := range idx {
			rows[i][ColLLMError] = table.Str(truncateError(err))
			sum.Errors++
		}
		return nil
	}
	metrics.LLMCallsTotal.WithLabelValues("ok").Inc()

	byID := make(map[string]entity.Verdict, len(verdicts))
	for _, vd := range verdicts {
		byID[vd.StrainID] = vd
	}
	for _, i := range idx {
		vd, ok := byID[rows[i].Text(entity.ColStrainID)]
		if !ok {
			vd = entity.Verdict{Err: "no verdict returned"}
		}
		if v.merge(rows[i], vd) {
			sum.Accepted++
		}
		if vd.Err != "" {
			sum.Errors++
		}
	}
	return nil
}

// merge writes a verdict onto row and reports whether it was accepted.
func (v *LLMValidator) merge(row table.Row, vd entity.Verdict) bool {
	if vd.Err != "" {
		row[ColLLMError] = table.Str(vd.Err)
		return false
	}
	breeder := strings.TrimSpace(vd.Breeder)
	row[ColLLMBreeder] = table.Str(breeder)
	row[ColLLMConfidence] = table.Num(vd.Confidence)
	row[ColLLMReasoning] = table.Str(vd.Reasoning)
	delete(row, ColLLMError)

	if vd.Confidence < v.cfg.Threshold || breeder == "" || strings.EqualFold(breeder, "unknown") {
		return false
	}
	if row.Text(ColBreederDisplayManual) != "" {
		return false
	}
	row[ColBreederDisplayManual] = table.Str(breeder)
	return true
}

// request builds the model payload: identity, the cleaned and name columns
// that are set, and the visible page text.
func (v *LLMValidator) request(ctx context.Context, in *table.Table, row table.Row) entity.ValidationRequest {
	fields := map[string]string{}
	for _, c := range in.Columns() {
		name := c.Name
		if !strings.HasSuffix(name, "_clean") && name != entity.ColStrainNameRaw && name != entity.ColBreederNameRaw && name != entity.ColGeneticsRaw {
			continue
		}
		if val := row.Get(name); !val.IsNull() {
			fields[name] = val.String()
		}
	}
	req := entity.ValidationRequest{
		StrainID:  row.Text(entity.ColStrainID),
		Vendor:    row.Text(entity.ColVendor),
		SourceURL: row.Text(entity.ColSourceURL),
		Fields:    fields,
	}
	if key := row.Text(entity.ColArchiveKey); key != "" && v.archive != nil {
		html, err := v.archive.GetHTML(ctx, key)
		switch {
		case err == nil:
			req.PageText = extract.Compact(html, req.SourceURL, v.cfg.MaxChars)
		case errors.Is(err, repository.ErrNotFound):
			v.logger.Debug("Archived page missing", zap.String("key", key))
		default:
			v.logger.Warn("Archived page unreadable", zap.String("key", key), zap.Error(err))
		}
	}
	return req
}

func truncateError(err error) string {
	return truncateMessage(err.Error(), maxErrorMessage)
}

// FallbackOnly selects rows whose breeder came from the vendor fallback.
func FallbackOnly(row table.Row) bool {
	b, ok := row.Get("breeder_vendor_fallback_clean").Truth()
	return ok && b
}
