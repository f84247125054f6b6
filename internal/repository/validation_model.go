package repository

import (
	"context"

	"github.com/user/strain-pipeline/internal/entity"
)

// ValidationModel is the external model that reviews rows (C9).
type ValidationModel interface {
	// Validate returns one verdict per request, in order. Per-row failures are
	// reported through Verdict.Err; the error return is for batch-level failure.
	Validate(ctx context.Context, batch []entity.ValidationRequest) ([]entity.Verdict, error)
}
