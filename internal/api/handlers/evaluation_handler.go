package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ragchat/backend/internal/evaluation"
)

type EvaluationHandler struct {
	history *evaluation.History
}

func NewEvaluationHandler(history *evaluation.History) *EvaluationHandler {
	return &EvaluationHandler{history: history}
}

func (h *EvaluationHandler) GetSummary(c *fiber.Ctx) error {
	return c.JSON(h.history.Summary())
}

func (h *EvaluationHandler) GetHistory(c *fiber.Ctx) error {
	records := h.history.Records()
	return c.JSON(fiber.Map{
		"records": records,
		"total":   len(records),
	})
}
