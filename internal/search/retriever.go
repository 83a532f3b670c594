package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/pkg/logger"
)

type RetrieverConfig struct {
	// TopK is the breadth of the vector nearest-neighbor leg.
	TopK int
	// MaxResults caps the fused ranking before the reranker gate.
	MaxResults int
	// RerankerThreshold is the minimum reranker score (0-10 scale) a hit
	// needs to be surfaced. Hits strictly below it are dropped.
	RerankerThreshold float64
}

// Retriever runs scoped hybrid queries and narrows the backend's broad
// recall down to the hits the reranker considers relevant.
type Retriever struct {
	backend           Backend
	topK              int
	maxResults        int
	rerankerThreshold float64
}

func NewRetriever(backend Backend, cfg RetrieverConfig) *Retriever {
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 3
	}

	return &Retriever{
		backend:           backend,
		topK:              cfg.TopK,
		maxResults:        cfg.MaxResults,
		rerankerThreshold: cfg.RerankerThreshold,
	}
}

// Search retrieves knowledge base documents matching queryText, restricted
// to documents whose scope set intersects the caller's scope tags. An empty
// scope matches nothing. Zero surviving hits is an empty result, not an
// error.
func (r *Retriever) Search(ctx context.Context, scope, queryText string) ([]knowledge.Document, error) {
	tags := NormalizeScope(scope)
	if len(tags) == 0 {
		logger.Warn("Search with empty scope, failing closed", zap.String("query", queryText))
		return []knowledge.Document{}, nil
	}

	hits, err := r.backend.Query(ctx, Query{
		Text:      queryText,
		ScopeTags: tags,
		TopK:      r.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid query failed: %w", err)
	}

	// The backend fuses vector and keyword rankings itself; only the size
	// cap and the reranker gate are applied here.
	if len(hits) > r.maxResults {
		hits = hits[:r.maxResults]
	}

	docs := make([]knowledge.Document, 0, len(hits))
	for _, hit := range hits {
		if hit.RerankerScore < r.rerankerThreshold {
			metrics.RerankerRejected.Inc()
			logger.Debug("Hit below reranker threshold",
				zap.String("problem_id", hit.Document.ProblemID),
				zap.Float64("reranker_score", hit.RerankerScore),
				zap.Float64("threshold", r.rerankerThreshold),
			)
			continue
		}
		docs = append(docs, projectDocument(hit.Document))
	}

	metrics.RetrievalResults.Observe(float64(len(docs)))
	logger.Info("Knowledge base searched",
		zap.String("query", queryText),
		zap.Strings("scope", tags),
		zap.Int("raw_hits", len(hits)),
		zap.Int("results", len(docs)),
	)

	return docs, nil
}

// NormalizeScope splits a comma-separated scope expression into tags,
// stripping all whitespace. Empty tags are dropped.
func NormalizeScope(scope string) []string {
	parts := strings.Split(scope, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.Join(strings.Fields(part), "")
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// projectDocument reduces a hit to the fields surfaced to callers; people,
// date, and comment fields stay inside the index.
func projectDocument(doc knowledge.Document) knowledge.Document {
	return knowledge.Document{
		ProblemID:   doc.ProblemID,
		Title:       doc.Title,
		Description: doc.Description,
		Status:      doc.Status,
		RootCause:   doc.RootCause,
		Workaround:  doc.Workaround,
		Resolution:  doc.Resolution,
		Summary:     doc.Summary,
	}
}
