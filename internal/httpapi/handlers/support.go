package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/common"
	"github.com/suPer8Hu/support-desk/internal/escalation"
)

func (h *Handler) ListConversations(c *gin.Context) {
	list := h.Router.Store().List()
	common.OK(c, gin.H{"conversations": list, "total": len(list)})
}

type transcriptResp struct {
	UserID    string         `json:"userId"`
	State     chat.State     `json:"state"`
	AgentName string         `json:"agentName,omitempty"`
	Source    string         `json:"source"`
	Messages  []chat.Message `json:"messages"`
}

// ListMessages serves the live conversation, falling back to the archive
// once the in-memory copy is gone.
func (h *Handler) ListMessages(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if conv, ok := h.Router.Store().Get(id); ok {
		common.OK(c, transcriptResp{
			UserID:    id,
			State:     conv.State,
			AgentName: conv.AgentName,
			Source:    "live",
			Messages:  conv.Messages,
		})
		return
	}

	if h.Transcripts != nil {
		msgs, err := h.Transcripts.Load(c.Request.Context(), id)
		if err != nil {
			h.Log.Error().Err(err).Str("customer_id", id).Msg("load archived transcript failed")
			common.Fail(c, http.StatusInternalServerError, 50002, "failed to load transcript")
			return
		}
		if len(msgs) > 0 {
			common.OK(c, transcriptResp{UserID: id, State: chat.StateBot, Source: "archive", Messages: msgs})
			return
		}
	}

	common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
}

func (h *Handler) ClearConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	h.Router.ClearConversation(id)

	if h.Transcripts != nil {
		if err := h.Transcripts.Clear(c.Request.Context(), id); err != nil {
			h.Log.Error().Err(err).Str("customer_id", id).Msg("clear archived transcript failed")
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to clear transcript")
			return
		}
	}
	common.OK(c, gin.H{"cleared": id})
}

func (h *Handler) ListEscalations(c *gin.Context) {
	if h.Tickets == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "escalation tickets disabled")
		return
	}

	status := escalation.Status(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", escalation.StatusOpen, escalation.StatusAcknowledged:
	default:
		common.Fail(c, http.StatusBadRequest, 40001, "invalid status")
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			common.Fail(c, http.StatusBadRequest, 40002, "invalid limit")
			return
		}
		limit = n
	}

	tickets, err := h.Tickets.List(c.Request.Context(), status, limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("list escalations failed")
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list escalations")
		return
	}
	common.OK(c, gin.H{"tickets": tickets})
}

func (h *Handler) AckEscalation(c *gin.Context) {
	if h.Tickets == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "escalation tickets disabled")
		return
	}
	id, _ := auth.IdentityFromContext(c)
	by := id.Username
	if by == "" {
		by = id.ID
	}

	t, err := h.Tickets.Ack(c.Request.Context(), c.Param("id"), by, h.Now().UTC())
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "ticket not found")
		return
	case errors.Is(err, escalation.ErrAlreadyAcknowledged):
		common.Fail(c, http.StatusConflict, 40901, "ticket already acknowledged")
		return
	case err != nil:
		h.Log.Error().Err(err).Str("ticket_id", c.Param("id")).Msg("ack escalation failed")
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to acknowledge ticket")
		return
	}
	common.OK(c, t)
}
