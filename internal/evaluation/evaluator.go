package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/llm"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/pkg/logger"
)

// ErrSchemaViolation is returned when the grader's response does not match
// the requested JSON schema or carries a rating outside {1, 3, 5}.
var ErrSchemaViolation = errors.New("evaluation response violates schema")

const (
	ModeGroundTruth = "ground_truth"
	ModeProduction  = "production"
)

// Reference is the material a generated answer is graded against. It is a
// sealed choice between a ground-truth answer and a knowledge document.
type Reference interface {
	mode() string
}

// GroundTruth grades against a known correct answer.
type GroundTruth struct {
	Answer string
}

func (GroundTruth) mode() string { return ModeGroundTruth }

// ProductionDocument grades against the knowledge document the answer was
// generated from, for cases where no curated answer exists.
type ProductionDocument struct {
	Document knowledge.Document
}

func (ProductionDocument) mode() string { return ModeProduction }

// Sample is one question/answer pair to grade.
type Sample struct {
	Question  string
	Answer    string
	Reference Reference
}

// Record is a graded sample. Rating is always 1, 3, or 5.
type Record struct {
	Mode            string `json:"mode"`
	UserQuestion    string `json:"user_question"`
	GeneratedAnswer string `json:"generated_answer"`
	Rating          int    `json:"rating"`
	Thoughts        string `json:"thoughts"`

	GroundTruthAnswer     string `json:"ground_truth_answer,omitempty"`
	KnowledgeBaseDocument string `json:"knowledge_base_document,omitempty"`
}

// BatchItem pairs a batch entry with its outcome. Err is set when grading
// that entry failed; the rest of the batch still runs.
type BatchItem struct {
	Index  int
	Record Record
	Err    error
}

// Completer is satisfied by llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Config selects the model and sampling settings used for grading.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Evaluator struct {
	completer Completer
	cfg       Config
}

func NewEvaluator(completer Completer, cfg Config) *Evaluator {
	return &Evaluator{completer: completer, cfg: cfg}
}

// Evaluate grades a single generated answer against its reference.
func (e *Evaluator) Evaluate(ctx context.Context, sample Sample) (Record, error) {
	if sample.Reference == nil {
		return Record{}, fmt.Errorf("%w: sample has no reference", ErrSchemaViolation)
	}

	var (
		prompt string
		schema llm.ResponseSchema
	)
	switch ref := sample.Reference.(type) {
	case GroundTruth:
		prompt = buildGroundTruthPrompt(sample.Question, ref.Answer, sample.Answer)
		schema = llm.ResponseSchema{Name: "Eval", Schema: groundTruthSchema}
	case ProductionDocument:
		doc, err := json.Marshal(ref.Document)
		if err != nil {
			return Record{}, fmt.Errorf("encoding knowledge document: %w", err)
		}
		prompt = buildProductionPrompt(sample.Question, sample.Answer, string(doc))
		schema = llm.ResponseSchema{Name: "Eval", Schema: productionSchema}
	default:
		return Record{}, fmt.Errorf("%w: unknown reference type %T", ErrSchemaViolation, sample.Reference)
	}

	mode := sample.Reference.mode()

	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Messages:       []llm.Message{{Role: llm.RoleSystem, Content: prompt}},
		Model:          e.cfg.Model,
		Temperature:    e.cfg.Temperature,
		MaxTokens:      e.cfg.MaxTokens,
		ResponseSchema: &schema,
	})
	if err != nil {
		return Record{}, fmt.Errorf("grading answer: %w", err)
	}

	record, err := parseRecord(mode, resp.Content)
	if err != nil {
		return Record{}, err
	}

	metrics.EvaluationsTotal.WithLabelValues(mode, strconv.Itoa(record.Rating)).Inc()
	logger.Debug("Answer graded",
		zap.String("mode", mode),
		zap.Int("rating", record.Rating),
	)

	return record, nil
}

// EvaluateBatch grades each sample in order. A failed sample records its
// error and the batch continues.
func (e *Evaluator) EvaluateBatch(ctx context.Context, samples []Sample) []BatchItem {
	items := make([]BatchItem, len(samples))
	for i, sample := range samples {
		record, err := e.Evaluate(ctx, sample)
		items[i] = BatchItem{Index: i, Record: record, Err: err}
		if err != nil {
			logger.Warn("Batch evaluation entry failed",
				zap.Int("index", i),
				zap.Error(err),
			)
		}
	}
	return items
}

type gradedResponse struct {
	UserQuestion          string `json:"user_question"`
	GeneratedAnswer       string `json:"generated_answer"`
	Rating                int    `json:"rating"`
	Thoughts              string `json:"thoughts"`
	GroundTruthAnswer     string `json:"ground_truth_answer"`
	KnowledgeBaseDocument string `json:"knowledge_base_document"`
}

func parseRecord(mode, content string) (Record, error) {
	var graded gradedResponse
	if err := json.Unmarshal([]byte(content), &graded); err != nil {
		return Record{}, fmt.Errorf("%w: decoding grader output: %v", ErrSchemaViolation, err)
	}

	if graded.Rating != 1 && graded.Rating != 3 && graded.Rating != 5 {
		return Record{}, fmt.Errorf("%w: rating %d outside {1, 3, 5}", ErrSchemaViolation, graded.Rating)
	}
	if graded.Thoughts == "" {
		return Record{}, fmt.Errorf("%w: missing thoughts", ErrSchemaViolation)
	}

	record := Record{
		Mode:            mode,
		UserQuestion:    graded.UserQuestion,
		GeneratedAnswer: graded.GeneratedAnswer,
		Rating:          graded.Rating,
		Thoughts:        graded.Thoughts,
	}
	switch mode {
	case ModeGroundTruth:
		record.GroundTruthAnswer = graded.GroundTruthAnswer
	case ModeProduction:
		record.KnowledgeBaseDocument = graded.KnowledgeBaseDocument
	}
	return record, nil
}
