package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/chat"
	"github.com/ragchat/backend/internal/llm"
	"github.com/ragchat/backend/internal/metrics"
	"github.com/ragchat/backend/pkg/logger"
)

type ChatHandler struct {
	engine *chat.Engine
}

func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []llm.Message `json:"conversation_history"`
	Evaluate            bool          `json:"evaluate"`
}

func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	start := time.Now()
	resp, err := h.engine.Chat(c.Context(), chat.Request{
		Message:  req.Message,
		History:  req.ConversationHistory,
		Evaluate: req.Evaluate,
	})
	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to process chat message", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate a response",
		})
	}

	metrics.ChatTotal.WithLabelValues("success").Inc()
	metrics.ChatDuration.WithLabelValues(strconv.FormatBool(resp.Evaluation != nil)).
		Observe(time.Since(start).Seconds())
	if resp.Evaluation != nil {
		metrics.EvaluationScore.WithLabelValues("overall").Observe(resp.Evaluation.OverallScore)
	}

	return c.JSON(resp)
}
