package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/sse"
)

type EventsHandler struct {
	hub *sse.Hub
	log *logger.Logger
}

func NewEventsHandler(hub *sse.Hub, baseLog *logger.Logger) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		log: baseLog.With("handler", "EventsHandler"),
	}
}

// Stream serves the global per-user event stream.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	h.serve(c, userID, sse.UserChannel(userID))
}

// VideoStream serves events scoped to one video.
func (h *EventsHandler) VideoStream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	h.serve(c, userID, sse.VideoChannel(videoID))
}

func (h *EventsHandler) serve(c *gin.Context, userID uuid.UUID, channel string) {
	client := h.hub.NewClient(userID)
	h.hub.AddChannel(client, channel)
	defer h.hub.CloseClient(client)

	h.log.Debug("SSE stream opened", "user_id", userID.String(), "channel", channel)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
