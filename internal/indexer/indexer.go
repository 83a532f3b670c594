// Package indexer turns ingested knowledge base documents into index
// records: schema ensured, summary derived from the comment thread,
// embedding computed, record upserted by problem_id.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/internal/search"
	"github.com/support-assistant/backend/pkg/logger"
)

var ErrMissingProblemID = errors.New("document has no problem_id")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Summarizer interface {
	SummarizeComments(ctx context.Context, comments []knowledge.Comment) (string, error)
}

type Indexer struct {
	backend    search.Backend
	embedder   Embedder
	summarizer Summarizer
}

func New(backend search.Backend, embedder Embedder, summarizer Summarizer) *Indexer {
	return &Indexer{
		backend:    backend,
		embedder:   embedder,
		summarizer: summarizer,
	}
}

// Index writes doc into the search index. Re-indexing the same problem_id
// overwrites the stored record. The embedding is recomputed on every call;
// callers should avoid redundant re-indexing of unchanged documents.
func (ix *Indexer) Index(ctx context.Context, doc *knowledge.Document) error {
	if doc.ProblemID == "" {
		return ErrMissingProblemID
	}

	if err := ix.backend.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensuring index: %w", err)
	}

	if doc.Summary == "" && len(doc.Comments) > 0 {
		summary, err := ix.summarizer.SummarizeComments(ctx, doc.Comments)
		if err != nil {
			return fmt.Errorf("summarizing comments for %s: %w", doc.ProblemID, err)
		}
		doc.Summary = summary
	}

	embedding, err := ix.embedder.Embed(ctx, doc.Title+"\n"+doc.Description)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", doc.ProblemID, err)
	}
	doc.Embedding = embedding

	if err := ix.backend.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upserting %s: %w", doc.ProblemID, err)
	}

	metrics.DocumentsIndexed.Inc()
	logger.Info("Document indexed",
		zap.String("problem_id", doc.ProblemID),
		zap.Int("embedding_dim", len(embedding)),
		zap.Strings("scope", doc.Scope),
	)

	return nil
}
