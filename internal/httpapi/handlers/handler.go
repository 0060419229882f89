package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/common"
	"github.com/suPer8Hu/support-desk/internal/escalation"
)

// TicketStore is the escalation repo as seen by the staff API.
type TicketStore interface {
	List(ctx context.Context, status escalation.Status, limit int) ([]escalation.Ticket, error)
	Ack(ctx context.Context, id, by string, at time.Time) (*escalation.Ticket, error)
}

// TranscriptStore is the optional Redis transcript archive.
type TranscriptStore interface {
	Load(ctx context.Context, customerID string) ([]chat.Message, error)
	Clear(ctx context.Context, customerID string) error
}

type Handler struct {
	Router      *chat.Router
	Tickets     TicketStore
	Transcripts TranscriptStore
	Service     string
	Log         zerolog.Logger
	Now         func() time.Time
}

func NewHandler(router *chat.Router, service string, log zerolog.Logger) *Handler {
	return &Handler{
		Router:  router,
		Service: service,
		Log:     log.With().Str("component", "httpapi").Logger(),
		Now:     time.Now,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.Service,
		"status":  "healthy",
	})
}
