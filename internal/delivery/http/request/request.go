package request

// ResolveRequest asks for the archived capture of an original product URL.
type ResolveRequest struct {
	URL string `json:"url"`
}
