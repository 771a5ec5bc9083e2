package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/domain"
)

type channelHandlers struct {
	orch    *orch.Orchestrator
	limiter *app.RateLimiter
}

type createChannelRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func errorBody(err error) gin.H {
	return gin.H{"error": domain.ErrorCode(err), "message": err.Error()}
}

// create handles POST /api/channels {kind, name} and
// POST /api/channels/:kind {name}.
func (h *channelHandlers) create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(domain.ErrInvalidChannelName))
		return
	}
	if k := c.Param("kind"); k != "" {
		req.Kind = k
	}
	kind, err := domain.ParseRoomKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	// Rejected requests must not spend the client's creation quota.
	id, err := domain.DeriveRoomID(req.Name, kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	if _, err := h.orch.Room(id); err == nil {
		c.JSON(http.StatusBadRequest, errorBody(domain.ErrChannelAlreadyExists))
		return
	}
	if !h.limiter.Allow(c.GetString(signal.ClientTokenKey)) {
		c.JSON(http.StatusTooManyRequests, errorBody(domain.ErrRateLimited))
		return
	}

	room, err := h.orch.CreateChannel(kind, req.Name)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, room)
	case errors.Is(err, domain.ErrInvalidChannelName),
		errors.Is(err, domain.ErrChannelAlreadyExists),
		errors.Is(err, domain.ErrInvalidRoomKind):
		c.JSON(http.StatusBadRequest, errorBody(err))
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("create channel")
		c.JSON(http.StatusInternalServerError, errorBody(err))
	}
}

func (h *channelHandlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.ListRooms()})
}

func (h *channelHandlers) roomInfo(c *gin.Context) {
	view, err := h.orch.Room(domain.RoomID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *channelHandlers) listMembers(c *gin.Context) {
	members, err := h.orch.Members(domain.RoomID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}
