package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/llm"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	requests  []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &llm.CompletionResponse{Content: f.responses[i]}, nil
}

func gradedJSON(rating int) string {
	return fmt.Sprintf(`{
		"user_question": "How do I fix the VPN?",
		"generated_answer": "Lower the MTU.",
		"rating": %d,
		"thoughts": "The answer matches the documented workaround.",
		"ground_truth_answer": "Lower the MTU to 1400."
	}`, rating)
}

func TestEvaluator_Evaluate_GroundTruth(t *testing.T) {
	completer := &fakeCompleter{responses: []string{gradedJSON(5)}}
	evaluator := NewEvaluator(completer, Config{})

	record, err := evaluator.Evaluate(context.Background(), Sample{
		Question:  "How do I fix the VPN?",
		Answer:    "Lower the MTU.",
		Reference: GroundTruth{Answer: "Lower the MTU to 1400."},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeGroundTruth, record.Mode)
	assert.Equal(t, 5, record.Rating)
	assert.Equal(t, "Lower the MTU to 1400.", record.GroundTruthAnswer)
	assert.Empty(t, record.KnowledgeBaseDocument)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Ground truth answer: Lower the MTU to 1400.")
	assert.Contains(t, req.Messages[0].Content, "The rating value should always be either 1, 3, or 5.")
	require.NotNil(t, req.ResponseSchema)
	assert.Equal(t, "Eval", req.ResponseSchema.Name)
}

func TestEvaluator_GradingFollowsConfig(t *testing.T) {
	completer := &fakeCompleter{responses: []string{gradedJSON(5)}}
	evaluator := NewEvaluator(completer, Config{
		Model:       "gpt-4o",
		Temperature: 0.1,
		MaxTokens:   800,
	})

	_, err := evaluator.Evaluate(context.Background(), Sample{
		Question:  "q",
		Answer:    "a",
		Reference: GroundTruth{Answer: "g"},
	})
	require.NoError(t, err)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 0.001)
	assert.Equal(t, 800, req.MaxTokens)
}

func TestEvaluator_Evaluate_Production(t *testing.T) {
	response := `{
		"user_question": "How do I fix the VPN?",
		"generated_answer": "Lower the MTU.",
		"rating": 3,
		"thoughts": "Partially correct, the firmware fix is missing.",
		"knowledge_base_document": "{\"problem_id\":\"PB-1001\"}"
	}`
	completer := &fakeCompleter{responses: []string{response}}
	evaluator := NewEvaluator(completer, Config{})

	record, err := evaluator.Evaluate(context.Background(), Sample{
		Question: "How do I fix the VPN?",
		Answer:   "Lower the MTU.",
		Reference: ProductionDocument{Document: knowledge.Document{
			ProblemID:  "PB-1001",
			Title:      "VPN drops",
			Resolution: "Firmware update",
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, record.Mode)
	assert.Equal(t, 3, record.Rating)
	assert.NotEmpty(t, record.KnowledgeBaseDocument)
	assert.Empty(t, record.GroundTruthAnswer)

	prompt := completer.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "production environment")
	assert.Contains(t, prompt, `"problem_id":"PB-1001"`)
}

func TestEvaluator_Evaluate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"malformed JSON", `{"rating": 5,`},
		{"rating outside the fixed set", strings.Replace(gradedJSON(5), `"rating": 5`, `"rating": 4`, 1)},
		{"rating zero", gradedJSON(0)},
		{"missing thoughts", `{"user_question": "q", "generated_answer": "a", "rating": 5, "ground_truth_answer": "g"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{responses: []string{tt.response}}
			evaluator := NewEvaluator(completer, Config{})

			_, err := evaluator.Evaluate(context.Background(), Sample{
				Question:  "q",
				Answer:    "a",
				Reference: GroundTruth{Answer: "g"},
			})
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestEvaluator_Evaluate_MissingReference(t *testing.T) {
	evaluator := NewEvaluator(&fakeCompleter{}, Config{})

	_, err := evaluator.Evaluate(context.Background(), Sample{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestEvaluator_Evaluate_CompleterError(t *testing.T) {
	completerErr := errors.New("completion unavailable")
	completer := &fakeCompleter{responses: []string{""}, errs: []error{completerErr}}
	evaluator := NewEvaluator(completer, Config{})

	_, err := evaluator.Evaluate(context.Background(), Sample{
		Question:  "q",
		Answer:    "a",
		Reference: GroundTruth{Answer: "g"},
	})
	assert.ErrorIs(t, err, completerErr)
}

func TestEvaluator_EvaluateBatch(t *testing.T) {
	completer := &fakeCompleter{
		responses: []string{gradedJSON(5), "", gradedJSON(1)},
		errs:      []error{nil, errors.New("completion unavailable"), nil},
	}
	evaluator := NewEvaluator(completer, Config{})

	sample := Sample{Question: "q", Answer: "a", Reference: GroundTruth{Answer: "g"}}
	items := evaluator.EvaluateBatch(context.Background(), []Sample{sample, sample, sample})

	require.Len(t, items, 3)

	assert.Equal(t, 0, items[0].Index)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, 5, items[0].Record.Rating)

	assert.Error(t, items[1].Err, "a failed entry does not stop the batch")

	assert.Equal(t, 2, items[2].Index)
	assert.NoError(t, items[2].Err)
	assert.Equal(t, 1, items[2].Record.Rating)
}
