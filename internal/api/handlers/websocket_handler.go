package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/chat"
	"github.com/ragchat/backend/internal/llm"
	"github.com/ragchat/backend/pkg/logger"
)

const wsChatTimeout = 2 * time.Minute

type WebSocketHandler struct {
	engine *chat.Engine
}

func NewWebSocketHandler(engine *chat.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

type wsMessage struct {
	Type                string        `json:"type"`
	Content             string        `json:"content"`
	ConversationHistory []llm.Message `json:"conversation_history,omitempty"`
	Evaluate            bool          `json:"evaluate,omitempty"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "chat" {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			h.sendError(c, "Message is required")
			continue
		}

		if err := h.respond(c, msg); err != nil {
			logger.Error("Failed to answer WebSocket message", zap.Error(err))
			h.sendError(c, "Failed to generate a response")
		}
	}
}

// respond runs one chat turn and streams the reply back in phases: status,
// answer chunks, sources, then the optional evaluation.
func (h *WebSocketHandler) respond(c *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsChatTimeout)
	defer cancel()

	if err := c.WriteJSON(map[string]interface{}{
		"type":    "status",
		"content": "Thinking...",
	}); err != nil {
		return err
	}

	resp, err := h.engine.Chat(ctx, chat.Request{
		Message:  msg.Content,
		History:  msg.ConversationHistory,
		Evaluate: msg.Evaluate,
	})
	if err != nil {
		return err
	}

	words := strings.Fields(resp.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "chunk",
			"content": chunk,
		}); err != nil {
			return err
		}
	}

	complete := map[string]interface{}{
		"type":       "complete",
		"sources":    resp.Sources,
		"latency_ms": resp.LatencyMS,
	}
	if resp.Evaluation != nil {
		complete["evaluation"] = resp.Evaluation
	}

	return c.WriteJSON(complete)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Warn("Failed to send WebSocket error", zap.Error(err))
	}
}
