package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/assistant"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/internal/storage/models"
	"github.com/support-assistant/backend/pkg/logger"
)

const defaultHistoryLimit = 20

// SearchHistory is satisfied by sqlite.Client.
type SearchHistory interface {
	GetSearchHistory(sessionID string, limit int) ([]models.SearchRecord, error)
}

type SearchHandler struct {
	engine  *assistant.Engine
	history SearchHistory
}

func NewSearchHandler(engine *assistant.Engine, history SearchHistory) *SearchHandler {
	return &SearchHandler{
		engine:  engine,
		history: history,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		SessionID  string `json:"session_id"`
		Scope      string `json:"scope"`
		SearchText string `json:"search_text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}
	if req.SearchText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "search_text is required",
		})
	}

	started := time.Now()
	answer, err := h.engine.Answer(c.Context(), req.SessionID, req.Scope, req.SearchText)
	if err != nil {
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		logger.Error("Failed to answer search request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to search knowledge base",
		})
	}
	metrics.SearchDuration.WithLabelValues("success").Observe(time.Since(started).Seconds())

	return c.JSON(fiber.Map{
		"session_id": req.SessionID,
		"answer":     answer,
		"latency_ms": time.Since(started).Milliseconds(),
	})
}

func (h *SearchHandler) HandleSearchHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)

	records, err := h.history.GetSearchHistory(sessionID, limit)
	if err != nil {
		logger.Error("Failed to load search history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load search history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"count":      len(records),
		"history":    records,
	})
}

func (h *SearchHandler) HandleClearSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session id is required",
		})
	}

	existed, err := h.engine.ClearSession(c.Context(), sessionID)
	if err != nil {
		logger.Error("Failed to clear session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear session",
		})
	}
	if !existed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"cleared":    true,
	})
}
