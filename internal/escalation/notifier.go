package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/common"
)

// Publisher is the part of the AMQP publisher the notifier needs.
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// QueueNotifier publishes escalations for cmd/worker to persist.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) NotifyEscalation(ctx context.Context, e chat.Escalation) error {
	if err := n.pub.PublishJSON(ctx, e.ID, e); err != nil {
		return fmt.Errorf("publish escalation %s: %w", e.ID, err)
	}
	return nil
}

// RepoNotifier writes tickets directly, for deployments without a queue.
type RepoNotifier struct {
	h *Handler
}

func NewRepoNotifier(repo *Repo, log zerolog.Logger) *RepoNotifier {
	return &RepoNotifier{h: NewHandler(repo, log)}
}

func (n *RepoNotifier) NotifyEscalation(ctx context.Context, e chat.Escalation) error {
	_, _, err := n.h.Persist(ctx, e)
	return err
}

// Handler turns queued escalation events into tickets.
type Handler struct {
	repo *Repo
	log  zerolog.Logger
}

func NewHandler(repo *Repo, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, log: log.With().Str("component", "escalation").Logger()}
}

// ErrBadEvent marks a delivery that can never be processed.
var ErrBadEvent = errors.New("escalation: bad event")

// HandleDelivery decodes one queue body and persists it. Redelivered events
// resolve to the existing ticket.
func (h *Handler) HandleDelivery(ctx context.Context, body []byte) (*Ticket, error) {
	var e chat.Escalation
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	t, _, err := h.Persist(ctx, e)
	return t, err
}

func (h *Handler) Persist(ctx context.Context, e chat.Escalation) (*Ticket, bool, error) {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.CustomerID) == "" {
		return nil, false, fmt.Errorf("%w: id and customerId are required", ErrBadEvent)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	t := &Ticket{
		ID:         id,
		EventID:    e.ID,
		CustomerID: e.CustomerID,
		Message:    e.Message,
		Reason:     e.Reason,
		Rule:       string(e.Rule),
		Matched:    e.Matched,
		Status:     StatusOpen,
		RaisedAt:   e.At.UTC(),
	}
	saved, created, err := h.repo.CreateOrGetExisting(ctx, t)
	if err != nil {
		return nil, false, fmt.Errorf("persist escalation %s: %w", e.ID, err)
	}
	if created {
		h.log.Info().Str("ticket_id", saved.ID).Str("customer_id", saved.CustomerID).Str("rule", saved.Rule).Msg("escalation ticket opened")
	} else {
		h.log.Debug().Str("ticket_id", saved.ID).Str("event_id", e.ID).Msg("duplicate escalation event")
	}
	return saved, created, nil
}
