// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-assistant/pkg/types"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
	Model   string `json:"model"`
}

// chatWithPaper handles POST /api/chat/:id. Preconditions (paper exists,
// text extracted) are checked before any upstream call so their failures
// arrive as plain JSON errors, not broken streams. The reply is streamed
// as SSE: one "message" event per text fragment, then "done". A client
// disconnect cancels the upstream request; whatever text accumulated is
// still appended to the stored history.
func (s *Server) chatWithPaper(c *gin.Context) {
	id := c.Param("id")

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeInvalidRequest, "message is required")
		return
	}

	paperText, history, err := s.pipe.ChatContext(id, req.Message)
	if err != nil {
		failErr(c, err)
		return
	}

	st := s.pipe.Store()
	if err := st.AppendChatMessage(id, types.ChatMessage{
		Role:      types.RoleUser,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		failErr(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, _ := c.Writer.(http.Flusher)

	reply, streamErr := s.pipe.GenAI().ChatStream(c.Request.Context(), paperText, history, req.Model, func(delta string) {
		c.SSEvent("message", gin.H{"content": delta})
		if flusher != nil {
			flusher.Flush()
		}
	})

	// Persist the assistant turn even when the stream ended early; the
	// partial reply is what the user saw.
	if reply != "" {
		if err := st.AppendChatMessage(id, types.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   reply,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			s.log.Error("persisting assistant message failed", zap.String("arxiv_id", id), zap.Error(err))
		}
	}

	if streamErr != nil {
		s.log.Warn("chat stream ended with error", zap.String("arxiv_id", id), zap.Error(streamErr))
		c.SSEvent("error", gin.H{"message": streamErr.Error()})
		if flusher != nil {
			flusher.Flush()
		}
		return
	}

	c.SSEvent("done", gin.H{})
	if flusher != nil {
		flusher.Flush()
	}
}

// getChatHistory handles GET /api/chat/:id/history.
func (s *Server) getChatHistory(c *gin.Context) {
	history, err := s.pipe.Store().ChatHistory(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if history == nil {
		history = []types.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// clearChatHistory handles DELETE /api/chat/:id.
func (s *Server) clearChatHistory(c *gin.Context) {
	if err := s.pipe.Store().ClearChatHistory(c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
}

// generateSummary handles POST /api/chat/:id/generate-summary: a fresh
// full-text analysis, persisted and returned.
func (s *Server) generateSummary(c *gin.Context) {
	analysis, err := s.pipe.GenerateSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}
