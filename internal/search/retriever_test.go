package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-assistant/backend/internal/knowledge"
)

type fakeBackend struct {
	hits      []Hit
	err       error
	lastQuery Query
	queries   int
}

func (f *fakeBackend) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeBackend) Upsert(ctx context.Context, doc *knowledge.Document) error { return nil }

func (f *fakeBackend) Query(ctx context.Context, q Query) ([]Hit, error) {
	f.lastQuery = q
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func hit(problemID string, rerankerScore float64) Hit {
	return Hit{
		Document: knowledge.Document{
			ProblemID:   problemID,
			Title:       "Title " + problemID,
			Description: "Description " + problemID,
		},
		Score:         0.5,
		RerankerScore: rerankerScore,
	}
}

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  []string
	}{
		{"single tag", "hr", []string{"hr"}},
		{"multiple tags", "hr,finance", []string{"hr", "finance"}},
		{"whitespace removed inside and around tags", " hr , fin ance ", []string{"hr", "finance"}},
		{"empty string", "", []string{}},
		{"only separators and spaces", " , , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeScope(tt.scope))
		})
	}
}

func TestRetriever_Search_FailsClosedOnEmptyScope(t *testing.T) {
	backend := &fakeBackend{hits: []Hit{hit("P1", 9)}}
	retriever := NewRetriever(backend, RetrieverConfig{})

	docs, err := retriever.Search(context.Background(), "  ,  ", "vpn drops")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, backend.queries, "backend must not be queried without scope")
}

func TestRetriever_Search_QueryShape(t *testing.T) {
	backend := &fakeBackend{}
	retriever := NewRetriever(backend, RetrieverConfig{TopK: 7})

	_, err := retriever.Search(context.Background(), "hr, finance", "vpn drops")
	require.NoError(t, err)

	assert.Equal(t, "vpn drops", backend.lastQuery.Text)
	assert.Equal(t, []string{"hr", "finance"}, backend.lastQuery.ScopeTags)
	assert.Equal(t, 7, backend.lastQuery.TopK)
}

func TestRetriever_Search_CapsResults(t *testing.T) {
	backend := &fakeBackend{hits: []Hit{
		hit("P1", 9), hit("P2", 8), hit("P3", 7), hit("P4", 6), hit("P5", 5),
	}}
	retriever := NewRetriever(backend, RetrieverConfig{TopK: 5, MaxResults: 3})

	docs, err := retriever.Search(context.Background(), "hr", "vpn drops")
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, "P1", docs[0].ProblemID)
	assert.Equal(t, "P3", docs[2].ProblemID)
}

func TestRetriever_Search_RerankerGate(t *testing.T) {
	t.Run("hits below the threshold are dropped after the cap", func(t *testing.T) {
		backend := &fakeBackend{hits: []Hit{
			hit("P1", 9), hit("P2", 1.5), hit("P3", 4), hit("P4", 10),
		}}
		retriever := NewRetriever(backend, RetrieverConfig{MaxResults: 3, RerankerThreshold: 2.0})

		docs, err := retriever.Search(context.Background(), "hr", "vpn drops")
		require.NoError(t, err)

		require.Len(t, docs, 2)
		assert.Equal(t, "P1", docs[0].ProblemID)
		assert.Equal(t, "P3", docs[1].ProblemID, "P4 is outside the result cap and never considered")
	})

	t.Run("score equal to the threshold survives", func(t *testing.T) {
		backend := &fakeBackend{hits: []Hit{hit("P1", 2.0)}}
		retriever := NewRetriever(backend, RetrieverConfig{RerankerThreshold: 2.0})

		docs, err := retriever.Search(context.Background(), "hr", "vpn drops")
		require.NoError(t, err)
		require.Len(t, docs, 1)
	})

	t.Run("all hits below threshold yields empty result, not error", func(t *testing.T) {
		backend := &fakeBackend{hits: []Hit{hit("P1", 0.1), hit("P2", 0.5)}}
		retriever := NewRetriever(backend, RetrieverConfig{RerankerThreshold: 5.0})

		docs, err := retriever.Search(context.Background(), "hr", "vpn drops")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestRetriever_Search_ProjectsDocuments(t *testing.T) {
	full := knowledge.Document{
		ProblemID:   "P1",
		Title:       "VPN drops",
		Description: "Tunnel resets every hour",
		Status:      "resolved",
		RootCause:   "MTU mismatch",
		Workaround:  "Lower the MTU",
		Resolution:  "Firmware update",
		Summary:     "Discussed MTU settings",
		ReportedBy:  "casey",
		AssignedTo:  "jordan",
		Scope:       []string{"hr"},
		Comments:    []knowledge.Comment{{CommentText: "internal note"}},
	}
	backend := &fakeBackend{hits: []Hit{{Document: full, RerankerScore: 9}}}
	retriever := NewRetriever(backend, RetrieverConfig{})

	docs, err := retriever.Search(context.Background(), "hr", "vpn")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "P1", doc.ProblemID)
	assert.Equal(t, "VPN drops", doc.Title)
	assert.Equal(t, "MTU mismatch", doc.RootCause)
	assert.Equal(t, "Discussed MTU settings", doc.Summary)
	assert.Empty(t, doc.ReportedBy, "people fields stay inside the index")
	assert.Empty(t, doc.AssignedTo)
	assert.Empty(t, doc.Scope)
	assert.Empty(t, doc.Comments)
}

func TestRetriever_Search_BackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	backend := &fakeBackend{err: backendErr}
	retriever := NewRetriever(backend, RetrieverConfig{})

	_, err := retriever.Search(context.Background(), "hr", "vpn drops")
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)
}
