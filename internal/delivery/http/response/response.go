package response

import "time"

// ResolveResponse is the viewer's answer for a known URL.
type ResolveResponse struct {
	SignedURL        string    `json:"signed_url"`
	Vendor           string    `json:"vendor"`
	CollectionDate   time.Time `json:"collection_date"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
}

// ErrorResponse carries a human-readable message.
type ErrorResponse struct {
	Error string `json:"error"`
}
