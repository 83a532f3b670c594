// Package weaviatestore implements the search.Backend contract on Weaviate:
// one class holding the knowledge base, hybrid (vector+BM25) queries with a
// semantic rerank pass, and batch-style upserts keyed by problem_id.
package weaviatestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/search"
	"github.com/support-assistant/backend/pkg/logger"
)

type Config struct {
	Host   string
	Scheme string
	APIKey string

	// Class is the index (Weaviate class) name.
	Class string

	// Embedding/vector profile settings.
	EmbeddingModel     string
	VectorDimensions   int
	HNSWMaxConnections int
	HNSWEfConstruction int
	HNSWEf             int

	// HybridAlpha balances the vector leg against the keyword leg
	// (1 = pure vector, 0 = pure keyword).
	HybridAlpha float64

	Timeout time.Duration
}

type Store struct {
	client *weaviate.Client
	cfg    Config
}

func New(cfg Config) (*Store, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Class == "" {
		cfg.Class = "Knowledgebase"
	}
	if cfg.HybridAlpha == 0 {
		cfg.HybridAlpha = 0.7
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	clientConfig := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		clientConfig.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	logger.Info("Search index client initialized",
		zap.String("host", cfg.Host),
		zap.String("class", cfg.Class),
	)

	return &Store{client: client, cfg: cfg}, nil
}

// EnsureIndex creates the knowledge base class when absent: searchable text
// fields for every document attribute, filterable scope/date/identity
// fields, an HNSW cosine vector profile bound to the OpenAI vectorizer
// module, and the reranker module for the semantic pass.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.cfg.Class).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: checking class %s: %v", search.ErrIndexUnavailable, s.cfg.Class, err)
	}
	if exists {
		return nil
	}

	logger.Info("Creating search index", zap.String("class", s.cfg.Class))

	class := &models.Class{
		Class:       s.cfg.Class,
		Description: "Support knowledge base articles",
		Vectorizer:  "text2vec-openai",
		ModuleConfig: map[string]interface{}{
			"text2vec-openai": map[string]interface{}{
				"model":      s.cfg.EmbeddingModel,
				"dimensions": s.cfg.VectorDimensions,
				"type":       "text",
			},
			"reranker-transformers": map[string]interface{}{},
		},
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance":       "cosine",
			"maxConnections": s.cfg.HNSWMaxConnections,
			"efConstruction": s.cfg.HNSWEfConstruction,
			"ef":             s.cfg.HNSWEf,
		},
		Properties: classProperties(),
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		// A concurrent caller may have won the creation race.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("%w: creating class %s: %v", search.ErrIndexUnavailable, s.cfg.Class, err)
	}

	logger.Info("Search index created", zap.String("class", s.cfg.Class))

	return nil
}

// Upsert writes the full record under a UUID derived from problem_id, so a
// re-indexed document replaces its prior generation instead of duplicating.
func (s *Store) Upsert(ctx context.Context, doc *knowledge.Document) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	objectID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.ProblemID))

	obj := &models.Object{
		Class:      s.cfg.Class,
		ID:         strfmt.UUID(objectID.String()),
		Properties: recordProperties(doc),
	}
	if len(doc.Embedding) > 0 {
		obj.Vector = models.C11yVector(doc.Embedding)
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %v", search.ErrIndexUnavailable, doc.ProblemID, err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: upserting %s: %s", search.ErrIndexUnavailable, doc.ProblemID, r.Result.Errors.Error[0].Message)
		}
	}

	logger.Info("Knowledge base document upserted",
		zap.String("problem_id", doc.ProblemID),
		zap.String("object_id", objectID.String()),
	)

	return nil
}

// Query issues one combined request: hybrid vector+keyword retrieval over
// the query text (the backend vectorizes the text itself) restricted to the
// caller's scope tags, with reranker scores requested alongside each hit.
func (s *Store) Query(ctx context.Context, q search.Query) ([]search.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(q.Text).
		WithAlpha(float32(s.cfg.HybridAlpha))

	where := filters.Where().
		WithPath([]string{"scope"}).
		WithOperator(filters.ContainsAny).
		WithValueText(q.ScopeTags...)

	fields := []graphql.Field{
		{Name: "problem_id"},
		{Name: "title"},
		{Name: "description"},
		{Name: "status"},
		{Name: "root_cause"},
		{Name: "workaround"},
		{Name: "resolution"},
		{Name: "summary"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "score"},
			{
				Name:   fmt.Sprintf("rerank(property: %q query: %q)", "summary", q.Text),
				Fields: []graphql.Field{{Name: "score"}},
			},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.cfg.Class).
		WithHybrid(hybrid).
		WithWhere(where).
		WithFields(fields...).
		WithLimit(q.TopK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrIndexUnavailable, err)
	}
	if len(result.Errors) > 0 {
		msg := result.Errors[0].Message
		if strings.Contains(msg, "not found") {
			return nil, fmt.Errorf("%w: %s", search.ErrIndexNotFound, msg)
		}
		return nil, fmt.Errorf("%w: %s", search.ErrIndexUnavailable, msg)
	}

	return parseHits(result.Data, s.cfg.Class), nil
}

func classProperties() []*models.Property {
	searchable := func(name, description string) *models.Property {
		t := true
		return &models.Property{
			Name:            name,
			DataType:        []string{"text"},
			Description:     description,
			IndexFilterable: &t,
			IndexSearchable: &t,
		}
	}
	filterableDate := func(name string) *models.Property {
		t := true
		return &models.Property{
			Name:            name,
			DataType:        []string{"date"},
			IndexFilterable: &t,
		}
	}
	t := true

	return []*models.Property{
		searchable("problem_id", "Stable problem identity"),
		searchable("title", "Problem title"),
		searchable("description", "Problem description"),
		searchable("status", "Lifecycle status"),
		searchable("priority", "Priority"),
		searchable("impact", "Impact statement"),
		searchable("category", "Problem category"),
		searchable("assigned_to", "Assignee"),
		searchable("reported_by", "Reporter"),
		searchable("root_cause", "Root cause analysis"),
		searchable("workaround", "Known workaround"),
		searchable("resolution", "Final resolution"),
		searchable("summary", "Narrative summary of the comment thread"),
		searchable("comments", "Serialized comment thread"),
		filterableDate("reported_date"),
		filterableDate("resolved_date"),
		{
			Name:            "scope",
			DataType:        []string{"text[]"},
			Description:     "Visibility scope tags",
			IndexFilterable: &t,
		},
		{
			Name:            "related_incidents",
			DataType:        []string{"text[]"},
			IndexFilterable: &t,
		},
		{
			Name:     "attachment_urls",
			DataType: []string{"text[]"},
		},
	}
}

func recordProperties(doc *knowledge.Document) map[string]interface{} {
	attachmentURLs := make([]string, 0, len(doc.Attachments))
	for _, a := range doc.Attachments {
		attachmentURLs = append(attachmentURLs, a.FileURL)
	}

	commentsJSON, _ := json.Marshal(doc.Comments)

	props := map[string]interface{}{
		"problem_id":        doc.ProblemID,
		"title":             doc.Title,
		"description":       doc.Description,
		"status":            doc.Status,
		"priority":          doc.Priority,
		"impact":            doc.Impact,
		"category":          doc.Category,
		"assigned_to":       doc.AssignedTo,
		"reported_by":       doc.ReportedBy,
		"root_cause":        doc.RootCause,
		"workaround":        doc.Workaround,
		"resolution":        doc.Resolution,
		"summary":           doc.Summary,
		"comments":          string(commentsJSON),
		"scope":             doc.Scope,
		"related_incidents": doc.RelatedIncidents,
		"attachment_urls":   attachmentURLs,
		"reported_date":     doc.ReportedDate.Format(time.RFC3339),
	}
	if doc.ResolvedDate != nil {
		props["resolved_date"] = doc.ResolvedDate.Format(time.RFC3339)
	}

	return props
}

func parseHits(data map[string]models.JSONObject, class string) []search.Hit {
	hits := make([]search.Hit, 0)

	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return hits
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return hits
	}

	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		doc := knowledge.Document{
			ProblemID:   stringField(entry, "problem_id"),
			Title:       stringField(entry, "title"),
			Description: stringField(entry, "description"),
			Status:      stringField(entry, "status"),
			RootCause:   stringField(entry, "root_cause"),
			Workaround:  stringField(entry, "workaround"),
			Resolution:  stringField(entry, "resolution"),
			Summary:     stringField(entry, "summary"),
		}

		hit := search.Hit{Document: doc}
		if additional, ok := entry["_additional"].(map[string]interface{}); ok {
			hit.Score = numberField(additional, "score")
			if rerank, ok := additional["rerank"].([]interface{}); ok && len(rerank) > 0 {
				if first, ok := rerank[0].(map[string]interface{}); ok {
					hit.RerankerScore = numberField(first, "score")
				}
			}
		}

		hits = append(hits, hit)
	}

	return hits
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// numberField tolerates the string-encoded scores Weaviate's GraphQL layer
// returns for _additional fields.
func numberField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
