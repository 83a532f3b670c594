package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/indexer"
	"github.com/support-assistant/backend/internal/knowledge"
	"github.com/support-assistant/backend/pkg/logger"
)

type KnowledgeBaseHandler struct {
	indexer *indexer.Indexer
}

func NewKnowledgeBaseHandler(idx *indexer.Indexer) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{
		indexer: idx,
	}
}

func (h *KnowledgeBaseHandler) HandleUpload(c *fiber.Ctx) error {
	var doc knowledge.Document

	if err := c.BodyParser(&doc); err != nil {
		logger.Error("Failed to parse knowledge base document", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.indexer.Index(c.Context(), &doc); err != nil {
		if errors.Is(err, indexer.ErrMissingProblemID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "problem_id is required",
			})
		}
		logger.Error("Failed to index knowledge base document",
			zap.String("problem_id", doc.ProblemID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process knowledge base document",
		})
	}

	return c.JSON(fiber.Map{
		"problem_id": doc.ProblemID,
		"indexed":    true,
	})
}
