package escalation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("escalation: ticket not found")
	ErrAlreadyAcknowledged = errors.New("escalation: ticket already acknowledged")
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&Ticket{})
}

func (r *Repo) Create(ctx context.Context, t *Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) Get(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repo) GetByEventID(ctx context.Context, eventID string) (*Ticket, error) {
	var t Ticket
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateOrGetExisting inserts t, or returns the ticket already stored for
// t.EventID. The bool reports whether a new row was written.
func (r *Repo) CreateOrGetExisting(ctx context.Context, t *Ticket) (*Ticket, bool, error) {
	err := r.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return t, true, nil
	}

	existing, getErr := r.GetByEventID(ctx, t.EventID)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// List returns tickets newest first. An empty status lists every ticket.
func (r *Repo) List(ctx context.Context, status Status, limit int) ([]Ticket, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Order("raised_at DESC").
		Order("id DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []Ticket
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("status = ?", StatusOpen).
		Count(&n).Error
	return n, err
}

// Ack moves an open ticket to acknowledged.
func (r *Repo) Ack(ctx context.Context, id, by string, at time.Time) (*Ticket, error) {
	res := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND status = ?", id, StatusOpen).
		Updates(map[string]any{
			"status":          StatusAcknowledged,
			"acknowledged_by": by,
			"acknowledged_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return t, ErrAlreadyAcknowledged
	}
	return t, nil
}
