package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/llm"
	"github.com/support-assistant/backend/internal/session"
	"github.com/support-assistant/backend/internal/storage/models"
)

type fakeCompleter struct {
	responses []*llm.CompletionResponse
	errs      []error
	requests  []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

type fakeSearcher struct {
	docs       []knowledge.Document
	err        error
	lastScope  string
	lastSearch string
}

func (f *fakeSearcher) Search(ctx context.Context, scope, searchText string) ([]knowledge.Document, error) {
	f.lastScope = scope
	f.lastSearch = searchText
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeRecorder struct {
	records []models.SearchRecord
}

func (f *fakeRecorder) InsertSearchRecord(record *models.SearchRecord) error {
	f.records = append(f.records, *record)
	return nil
}

var testEngineConfig = EngineConfig{Temperature: 0.8, TopP: 0.0}

func toolCallResponse() *llm.CompletionResponse {
	args, _ := json.Marshal(map[string]string{
		"search_text": "vpn drops",
		"scope":       "hr",
	})
	return &llm.CompletionResponse{
		ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      searchToolName,
			Arguments: string(args),
		}},
	}
}

func answerResponse(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: content}
}

func TestEngine_Answer_ToolLoop(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		toolCallResponse(),
		answerResponse("Lower the MTU to 1400."),
	}}
	searcher := &fakeSearcher{docs: []knowledge.Document{{ProblemID: "PB-1001", Title: "VPN drops"}}}
	recorder := &fakeRecorder{}
	engine := NewEngine(store, completer, searcher, recorder, testEngineConfig)

	answer, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	require.NoError(t, err)
	assert.Equal(t, "Lower the MTU to 1400.", answer)

	t.Run("search tool receives the model's arguments", func(t *testing.T) {
		assert.Equal(t, "hr", searcher.lastScope)
		assert.Equal(t, "vpn drops", searcher.lastSearch)
	})

	t.Run("second completion sees the tool exchange", func(t *testing.T) {
		require.Len(t, completer.requests, 2)
		second := completer.requests[1].Messages

		last := second[len(second)-1]
		assert.Equal(t, llm.RoleTool, last.Role)
		assert.Equal(t, "call_1", last.ToolCallID)
		assert.Contains(t, last.Content, "PB-1001")

		assistant := second[len(second)-2]
		assert.Equal(t, llm.RoleAssistant, assistant.Role)
		require.Len(t, assistant.ToolCalls, 1)
	})

	t.Run("sampling settings are carried on every request", func(t *testing.T) {
		for _, req := range completer.requests {
			assert.InDelta(t, 0.8, req.Temperature, 0.001)
			assert.InDelta(t, 0.0, req.TopP, 0.001)
		}
	})

	t.Run("transcript holds only system, user turns, and final answer", func(t *testing.T) {
		transcript, err := store.GetOrCreate(context.Background(), "s1")
		require.NoError(t, err)

		require.Len(t, transcript.Messages, 4)
		assert.Equal(t, session.RoleSystem, transcript.Messages[0].Role)
		assert.Equal(t, "searchText:vpn drops", transcript.Messages[1].Content)
		assert.Equal(t, "scope:hr", transcript.Messages[2].Content)
		assert.Equal(t, session.RoleAssistant, transcript.Messages[3].Role)
		assert.Equal(t, "Lower the MTU to 1400.", transcript.Messages[3].Content)
	})

	t.Run("turn is recorded for audit", func(t *testing.T) {
		require.Len(t, recorder.records, 1)
		record := recorder.records[0]
		assert.Equal(t, "s1", record.SessionID)
		assert.Equal(t, "vpn drops", record.SearchText)
		assert.Equal(t, "Lower the MTU to 1400.", record.Answer)
		assert.Equal(t, 1, record.ResultsCount)
		assert.NotEmpty(t, record.ID)
	})
}

func TestEngine_SamplingFollowsConfig(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		answerResponse("Lower the MTU."),
	}}
	engine := NewEngine(store, completer, &fakeSearcher{}, nil, EngineConfig{
		Temperature: 0.4,
		TopP:        0.9,
	})

	_, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	require.NoError(t, err)

	require.Len(t, completer.requests, 1)
	assert.InDelta(t, 0.4, completer.requests[0].Temperature, 0.001)
	assert.InDelta(t, 0.9, completer.requests[0].TopP, 0.001)
}

func TestEngine_Answer_DirectAnswerWithoutTools(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		answerResponse("Please share the error message."),
	}}
	engine := NewEngine(store, completer, &fakeSearcher{}, nil, testEngineConfig)

	answer, err := engine.Answer(context.Background(), "s1", "hr", "it is broken")
	require.NoError(t, err)
	assert.Equal(t, "Please share the error message.", answer)
	require.Len(t, completer.requests, 1)
	require.Len(t, completer.requests[0].Tools, 1)
	assert.Equal(t, searchToolName, completer.requests[0].Tools[0].Name)
}

func TestEngine_Answer_RepeatedTurnIsDeduplicated(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		answerResponse("Lower the MTU."),
		answerResponse("Lower the MTU."),
	}}
	engine := NewEngine(store, completer, &fakeSearcher{}, nil, testEngineConfig)

	_, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	require.NoError(t, err)
	_, err = engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	require.NoError(t, err)

	transcript, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, transcript.Messages, 4, "repeated turns add nothing to the transcript")

	t.Run("repeated turn is not re-sent to the model", func(t *testing.T) {
		second := completer.requests[1].Messages
		userTurns := 0
		for _, m := range second {
			if m.Role == llm.RoleUser {
				userTurns++
			}
		}
		assert.Equal(t, 2, userTurns)
	})
}

func TestEngine_Answer_SearchFailurePropagates(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{toolCallResponse()}}
	searchErr := errors.New("index unavailable")
	engine := NewEngine(store, completer, &fakeSearcher{err: searchErr}, nil, testEngineConfig)

	_, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	assert.ErrorIs(t, err, searchErr)
}

func TestEngine_Answer_EmptyFinalContent(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		{Content: ""},
	}}
	engine := NewEngine(store, completer, &fakeSearcher{}, nil, testEngineConfig)

	_, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestEngine_ClearSession(t *testing.T) {
	store := session.NewMemoryStore(SystemPrompt, time.Hour)
	completer := &fakeCompleter{responses: []*llm.CompletionResponse{
		answerResponse("Lower the MTU."),
	}}
	engine := NewEngine(store, completer, &fakeSearcher{}, nil, testEngineConfig)

	_, err := engine.Answer(context.Background(), "s1", "hr", "vpn drops")
	require.NoError(t, err)

	existed, err := engine.ClearSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = engine.ClearSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, existed)
}
