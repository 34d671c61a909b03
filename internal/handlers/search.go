package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/services"
)

type SearchHandler struct {
	searchService services.SearchService
	log           *logger.Logger
}

func NewSearchHandler(searchService services.SearchService, baseLog *logger.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		log:           baseLog.With("handler", "SearchHandler"),
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	q := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	resp, err := h.searchService.Search(c.Request.Context(), q, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}
