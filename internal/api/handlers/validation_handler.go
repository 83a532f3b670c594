package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/evaluation"
	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/internal/storage/models"
	"github.com/support-assistant/backend/pkg/logger"
)

// EvaluationStore is satisfied by the sqlite client. A nil store disables
// persistence of graded results.
type EvaluationStore interface {
	InsertEvaluationRecord(record *models.EvaluationRecord) error
	GetEvaluationResults(mode string, limit int) ([]models.EvaluationRecord, error)
}

type ValidationHandler struct {
	evaluator *evaluation.Evaluator
	store     EvaluationStore
}

func NewValidationHandler(evaluator *evaluation.Evaluator, store EvaluationStore) *ValidationHandler {
	return &ValidationHandler{
		evaluator: evaluator,
		store:     store,
	}
}

type questionAndAnswer struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	LLMResponse string `json:"llmResponse"`
}

type validationRequest struct {
	ProblemID              string              `json:"problem_id"`
	QuestionAndAnswer      []questionAndAnswer `json:"question_and_answer"`
	Scope                  []string            `json:"scope"`
	IsProductionEvaluation bool                `json:"isProductionEvaluation"`
	KnowledgeBase          *knowledge.Document `json:"knowledge_base,omitempty"`
}

func (h *ValidationHandler) HandleValidate(c *fiber.Ctx) error {
	var req validationRequest

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse validation request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.QuestionAndAnswer) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question_and_answer is required",
		})
	}
	if req.IsProductionEvaluation && req.KnowledgeBase == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "knowledge_base is required for production evaluation",
		})
	}

	samples := make([]evaluation.Sample, len(req.QuestionAndAnswer))
	for i, qa := range req.QuestionAndAnswer {
		sample := evaluation.Sample{
			Question: qa.Question,
			Answer:   qa.LLMResponse,
		}
		if req.IsProductionEvaluation {
			sample.Reference = evaluation.ProductionDocument{Document: *req.KnowledgeBase}
		} else {
			sample.Reference = evaluation.GroundTruth{Answer: qa.Answer}
		}
		samples[i] = sample
	}

	items := h.evaluator.EvaluateBatch(c.Context(), samples)

	results := make([]fiber.Map, len(items))
	failed := 0
	for i, item := range items {
		if item.Err != nil {
			failed++
			status := "failed"
			if errors.Is(item.Err, evaluation.ErrSchemaViolation) {
				status = "schema_violation"
			}
			results[i] = fiber.Map{
				"index":  item.Index,
				"status": status,
				"error":  item.Err.Error(),
			}
			continue
		}

		h.persist(req.ProblemID, item.Record)
		results[i] = fiber.Map{
			"index":      item.Index,
			"status":     "graded",
			"evaluation": item.Record,
		}
	}

	logger.Info("Validation batch completed",
		zap.String("problem_id", req.ProblemID),
		zap.Int("graded", len(items)-failed),
		zap.Int("failed", failed),
	)

	return c.JSON(fiber.Map{
		"problem_id": req.ProblemID,
		"results":    results,
	})
}

func (h *ValidationHandler) HandleResults(c *fiber.Ctx) error {
	mode := c.Query("mode")
	if mode != evaluation.ModeGroundTruth && mode != evaluation.ModeProduction {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be ground_truth or production",
		})
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)

	records, err := h.store.GetEvaluationResults(mode, limit)
	if err != nil {
		logger.Error("Failed to load evaluation results", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load evaluation results",
		})
	}

	return c.JSON(fiber.Map{
		"mode":    mode,
		"count":   len(records),
		"results": records,
	})
}

func (h *ValidationHandler) persist(problemID string, record evaluation.Record) {
	if h.store == nil {
		return
	}

	reference := record.GroundTruthAnswer
	if record.Mode == evaluation.ModeProduction {
		reference = record.KnowledgeBaseDocument
	}

	err := h.store.InsertEvaluationRecord(&models.EvaluationRecord{
		SearchID:        problemID,
		Mode:            record.Mode,
		UserQuestion:    record.UserQuestion,
		GeneratedAnswer: record.GeneratedAnswer,
		Rating:          record.Rating,
		Thoughts:        record.Thoughts,
		Reference:       reference,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to persist evaluation record", zap.Error(err))
	}
}
