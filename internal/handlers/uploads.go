package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/services"
)

type UploadHandler struct {
	uploadService services.UploadService
	log           *logger.Logger
}

func NewUploadHandler(uploadService services.UploadService, baseLog *logger.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		log:           baseLog.With("handler", "UploadHandler"),
	}
}

func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req services.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.uploadService.Presign(c.Request.Context(), userID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *UploadHandler) Finalize(c *gin.Context) {
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
	if err := h.uploadService.Finalize(c.Request.Context(), userID, videoID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "queued"})
}
