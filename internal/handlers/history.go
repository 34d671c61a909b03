package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/services"
)

type HistoryHandler struct {
	historyService services.HistoryService
	log            *logger.Logger
}

func NewHistoryHandler(historyService services.HistoryService, baseLog *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		log:            baseLog.With("handler", "HistoryHandler"),
	}
}

type heartbeatRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
	DeltaSeconds    float64 `json:"delta_seconds"`
}

func (h *HistoryHandler) Heartbeat(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	videoID, err := uuid.Parse(c.Param("video_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.historyService.Heartbeat(c.Request.Context(), userID, videoID, req.PositionSeconds, req.DeltaSeconds); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

func (h *HistoryHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.historyService.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": entries})
}
