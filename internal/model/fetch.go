package model

// FetchStatus classifies the outcome of a page fetch.
type FetchStatus string

const (
	// StatusUsable means the response carries a non-trivial body worth extracting.
	StatusUsable FetchStatus = "usable"
	// StatusBlocked means the server rejected the client (403/429 or a bot wall).
	StatusBlocked FetchStatus = "blocked"
	// StatusEmpty means a successful response whose body is too small to hold content.
	StatusEmpty FetchStatus = "empty"
	// StatusNetworkError means the request never produced a response.
	StatusNetworkError FetchStatus = "network_error"
)

// FetchMethod records which strategy produced a FetchResult.
type FetchMethod string

const (
	// FetchedDirect is a plain HTTP GET.
	FetchedDirect FetchMethod = "direct"
	// FetchedRendered is a headless-browser render.
	FetchedRendered FetchMethod = "rendered"
)

// FetchResult is the classified response of a Fetcher or Renderer.
// It is consumed immediately by the orchestrator and never persisted.
type FetchResult struct {
	Status     FetchStatus
	Body       []byte
	FinalURL   string
	FetchedVia FetchMethod

	// StatusCode is the HTTP status code, zero for rendered or failed fetches.
	StatusCode int

	// Reason is a short human-readable explanation of the classification.
	Reason string
}

// Usable reports whether the result can be handed to the link extractor.
func (r *FetchResult) Usable() bool {
	return r != nil && r.Status == StatusUsable
}

// NeedsFallback reports whether a heavier fetch strategy could help.
func (r *FetchResult) NeedsFallback() bool {
	return r != nil && (r.Status == StatusBlocked || r.Status == StatusEmpty)
}
