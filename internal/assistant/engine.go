package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/llm"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/internal/session"
	"github.com/support-assistant/backend/internal/storage/models"
	"github.com/support-assistant/backend/pkg/logger"
)

// ErrNoAnswer is returned when the model ends the tool loop without
// producing a final message.
var ErrNoAnswer = errors.New("assistant produced no answer")

const defaultMaxToolRounds = 3

// Completer is satisfied by llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Searcher is satisfied by search.Retriever.
type Searcher interface {
	Search(ctx context.Context, scope, searchText string) ([]knowledge.Document, error)
}

// Recorder is satisfied by the sqlite client. A nil Recorder disables the
// audit trail.
type Recorder interface {
	InsertSearchRecord(record *models.SearchRecord) error
}

// EngineConfig carries the sampling settings for conversational turns.
type EngineConfig struct {
	Temperature   float32
	TopP          float32
	MaxToolRounds int
}

type Engine struct {
	store         session.Store
	completer     Completer
	searcher      Searcher
	recorder      Recorder
	temperature   float32
	topP          float32
	maxToolRounds int
}

func NewEngine(store session.Store, completer Completer, searcher Searcher, recorder Recorder, cfg EngineConfig) *Engine {
	if cfg.MaxToolRounds == 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}

	return &Engine{
		store:         store,
		completer:     completer,
		searcher:      searcher,
		recorder:      recorder,
		temperature:   cfg.Temperature,
		topP:          cfg.TopP,
		maxToolRounds: cfg.MaxToolRounds,
	}
}

// Answer runs one conversational turn: the search text and scope are
// appended to the session transcript as user turns, the model is invoked
// with the knowledge base search tool, and the final answer is appended to
// the transcript and returned.
func (e *Engine) Answer(ctx context.Context, sessionID, scope, searchText string) (string, error) {
	started := time.Now()

	transcript, err := e.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}

	messages := toLLMMessages(transcript.Messages)
	messages, err = e.appendUserTurn(ctx, sessionID, messages, "searchText:"+searchText)
	if err != nil {
		return "", err
	}
	messages, err = e.appendUserTurn(ctx, sessionID, messages, "scope:"+scope)
	if err != nil {
		return "", err
	}

	logger.Info("Answering search request",
		zap.String("session_id", sessionID),
		zap.String("scope", scope),
	)

	answer, resultsCount, err := e.runToolLoop(ctx, messages)
	if err != nil {
		return "", err
	}

	if _, err := e.store.AppendUnique(ctx, sessionID, session.RoleAssistant, answer); err != nil {
		return "", fmt.Errorf("recording answer: %w", err)
	}
	if err := e.store.Persist(ctx, sessionID); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}

	e.record(sessionID, searchText, scope, answer, resultsCount, time.Since(started))

	return answer, nil
}

// ClearSession drops the transcript for a session. It reports whether a
// transcript existed.
func (e *Engine) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	return e.store.Clear(ctx, sessionID)
}

func (e *Engine) appendUserTurn(ctx context.Context, sessionID string, messages []llm.Message, content string) ([]llm.Message, error) {
	appended, err := e.store.AppendUnique(ctx, sessionID, session.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("recording user turn: %w", err)
	}
	if appended {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})
	}
	return messages, nil
}

// runToolLoop drives the completion until the model answers in plain text.
// Tool call exchanges stay local to the turn; only the final answer reaches
// the transcript.
func (e *Engine) runToolLoop(ctx context.Context, messages []llm.Message) (string, int, error) {
	resultsCount := 0

	for round := 0; round <= e.maxToolRounds; round++ {
		req := llm.CompletionRequest{
			Messages:    messages,
			Temperature: e.temperature,
			TopP:        e.topP,
		}
		if round < e.maxToolRounds {
			req.Tools = []llm.Tool{{
				Name:        searchToolName,
				Description: searchToolDescription,
				Parameters:  json.RawMessage(searchToolParameters),
			}}
		}

		resp, err := e.completer.Complete(ctx, req)
		if err != nil {
			return "", 0, fmt.Errorf("completing turn: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return "", 0, ErrNoAnswer
			}
			return resp.Content, resultsCount, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			output, count, err := e.executeToolCall(ctx, call)
			if err != nil {
				return "", 0, err
			}
			resultsCount += count
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	return "", 0, ErrNoAnswer
}

func (e *Engine) executeToolCall(ctx context.Context, call llm.ToolCall) (string, int, error) {
	if call.Name != searchToolName {
		logger.Warn("Model requested unknown tool", zap.String("tool", call.Name))
		return fmt.Sprintf("unknown tool: %s", call.Name), 0, nil
	}

	var args struct {
		SearchText string `json:"search_text"`
		Scope      string `json:"scope"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", 0, fmt.Errorf("decoding tool arguments: %w", err)
	}

	logger.Info("Knowledge base search invoked",
		zap.String("search_text", args.SearchText),
		zap.String("scope", args.Scope),
	)

	documents, err := e.searcher.Search(ctx, args.Scope, args.SearchText)
	if err != nil {
		return "", 0, fmt.Errorf("searching knowledge base: %w", err)
	}

	metrics.ToolCallsTotal.Inc()

	output, err := json.Marshal(documents)
	if err != nil {
		return "", 0, fmt.Errorf("encoding search results: %w", err)
	}
	return string(output), len(documents), nil
}

func (e *Engine) record(sessionID, searchText, scope, answer string, resultsCount int, latency time.Duration) {
	if e.recorder == nil {
		return
	}

	err := e.recorder.InsertSearchRecord(&models.SearchRecord{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		SearchText:   searchText,
		Scope:        []string{scope},
		Answer:       answer,
		ResultsCount: resultsCount,
		LatencyMS:    int(latency.Milliseconds()),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record search", zap.Error(err))
	}
}

func toLLMMessages(messages []session.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages)+2)
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
