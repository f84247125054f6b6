package usecase

import (
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidContent is returned when a fetched page fails validation.
	ErrInvalidContent = errors.New("content failed validation")
	// ErrBlocked is returned when a fetched page is a block or captcha page.
	ErrBlocked = errors.New("blocked by remote site")
	// ErrUnknownURL is returned by the resolver for URLs absent from the archive.
	ErrUnknownURL = errors.New("url is not in the archive")
	// ErrPrecondition marks missing inputs of a batch step (exit code 1).
	ErrPrecondition = errors.New("precondition failed")
	// ErrDownstream marks failures of a backing service (exit code 2).
	ErrDownstream = errors.New("downstream service failure")
)

// truncateMessage cuts msg to at most n bytes without splitting a rune, so
// the result stays valid UTF-8 for text columns.
func truncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
