package llm

import "errors"

// Transport, quota, or availability failures of the upstream model service.
// Callers surface these as generation failures; retry policy beyond the
// client's own bounded retries belongs to the transport layer.
var (
	ErrCompletionUnavailable = errors.New("completion service unavailable")
	ErrEmbeddingUnavailable  = errors.New("embedding service unavailable")
)
