package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/services"
)

type HomefeedHandler struct {
	homefeedService services.HomefeedService
	log             *logger.Logger
}

func NewHomefeedHandler(homefeedService services.HomefeedService, baseLog *logger.Logger) *HomefeedHandler {
	return &HomefeedHandler{
		homefeedService: homefeedService,
		log:             baseLog.With("handler", "HomefeedHandler"),
	}
}

func (h *HomefeedHandler) Feed(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	items, err := h.homefeedService.Feed(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items})
}
