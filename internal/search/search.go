// Package search defines the hybrid retrieval contract: a Backend executes
// combined vector+keyword queries with a semantic rerank pass, and the
// Retriever applies the relevance gate on top of the backend's fused ranking.
package search

import (
	"context"
	"errors"

	"github.com/support-assistant/backend/internal/knowledge"
)

var (
	// ErrIndexUnavailable marks transport failures against the index store.
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrIndexNotFound marks a missing index; callers recover by ensuring
	// the schema, the only self-healing path in the system.
	ErrIndexNotFound = errors.New("search index not found")
)

// Query is one combined retrieval request. The backend vectorizes Text
// itself for the k-nearest-neighbor leg, runs the keyword leg on the same
// text, fuses both rankings, and attaches a reranker score to every hit.
type Query struct {
	Text      string
	ScopeTags []string
	TopK      int
}

// Hit is a fused-ranking entry. Score is the backend's hybrid fusion score;
// RerankerScore is the semantic reranking score on a 0-10 scale.
type Hit struct {
	Document      knowledge.Document
	Score         float64
	RerankerScore float64
}

type Backend interface {
	// EnsureIndex creates the index schema when absent. Idempotent; safe to
	// call before every write. Creation failures propagate unretried.
	EnsureIndex(ctx context.Context) error

	// Upsert writes the full record by problem_id, replacing any prior
	// generation of the same document.
	Upsert(ctx context.Context, doc *knowledge.Document) error

	// Query executes the combined request and returns the fused ranking.
	Query(ctx context.Context, q Query) ([]Hit, error)
}
