package usecase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/user/strain-pipeline/internal/entity"
)

// Validation check names, as stored in the archive sidecar.
const (
	CheckMinSize         = "min_size"
	CheckHasHTML         = "has_html"
	CheckHasTitle        = "has_title"
	CheckHasKeywords     = "has_keywords"
	CheckNoBlockKeywords = "no_block_keywords"
	CheckNoErrorKeywords = "no_error_keywords"
)

var (
	domainKeywords = []string{
		"cannabis", "seed", "strain", "thc", "cbd", "marijuana", "indica",
		"sativa", "hybrid", "feminized", "feminised", "autoflower", "genetics", "cultivar",
	}
	blockKeywords = []string{
		"captcha", "cf-challenge", "access denied", "are you a robot", "verify you are human",
		"attention required", "you have been blocked", "unusual traffic", "checking your browser",
		"request unsuccessful. incapsula",
	}
	errorKeywords = []string{
		"404 not found", "page not found", "internal server error", "service unavailable",
		"502 bad gateway", "this page doesn't exist", "no longer available", "product not found",
	}
)

// ValidationResult is the outcome of ContentValidator.Check.
type ValidationResult struct {
	Score    float64
	Checks   map[string]bool
	Accepted bool
}

// ContentValidator decides whether a fetched page is a real product page.
type ContentValidator struct {
	MinSize   int
	Threshold float64
}

// NewContentValidator creates a validator; a page is accepted when the share
// of passed checks reaches threshold.
func NewContentValidator(minSize int, threshold float64) *ContentValidator {
	return &ContentValidator{MinSize: minSize, Threshold: threshold}
}

// Check scores html against the six content checks.
func (v *ContentValidator) Check(html []byte) ValidationResult {
	lower := bytes.ToLower(html)
	checks := map[string]bool{
		CheckMinSize:         len(html) >= v.MinSize,
		CheckHasHTML:         bytes.Contains(lower, []byte("<html")),
		CheckHasTitle:        bytes.Contains(lower, []byte("<title")),
		CheckHasKeywords:     containsAny(lower, domainKeywords),
		CheckNoBlockKeywords: !containsAny(lower, blockKeywords),
		CheckNoErrorKeywords: !containsAny(lower, errorKeywords),
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	score := float64(passed) / float64(len(checks))
	return ValidationResult{
		Score:    score,
		Checks:   checks,
		Accepted: score >= v.Threshold,
	}
}

// Err classifies a rejected result as blocked or malformed.
func (r ValidationResult) Err(method entity.ScrapeMethod) error {
	if r.Accepted {
		return nil
	}
	failed := make([]string, 0, len(r.Checks))
	for _, name := range []string{CheckMinSize, CheckHasHTML, CheckHasTitle, CheckHasKeywords, CheckNoBlockKeywords, CheckNoErrorKeywords} {
		if !r.Checks[name] {
			failed = append(failed, name)
		}
	}
	if !r.Checks[CheckNoBlockKeywords] {
		return &entity.FetchError{
			Kind:   entity.FailureBlocked,
			Method: method,
			Err:    fmt.Errorf("%w: score %.2f, failed %s", ErrBlocked, r.Score, strings.Join(failed, ",")),
		}
	}
	return &entity.FetchError{
		Kind:   entity.FailureMalformed,
		Method: method,
		Err:    fmt.Errorf("%w: score %.2f, failed %s", ErrInvalidContent, r.Score, strings.Join(failed, ",")),
	}
}

func containsAny(haystack []byte, needles []string) bool {
	for _, n := range needles {
		if bytes.Contains(haystack, []byte(n)) {
			return true
		}
	}
	return false
}
