package escalation

import "time"

type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
)

// Ticket is the durable record of one human_needed decision.
type Ticket struct {
	ID             string     `gorm:"type:char(26);primaryKey" json:"id"`
	EventID        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"eventId"`
	CustomerID     string     `gorm:"type:varchar(64);not null;index:idx_tickets_customer_status,priority:1" json:"customerId"`
	Message        string     `gorm:"type:text;not null" json:"message"`
	Reason         string     `gorm:"type:varchar(255);not null" json:"reason"`
	Rule           string     `gorm:"type:varchar(32);not null" json:"rule"`
	Matched        string     `gorm:"type:varchar(255)" json:"matched,omitempty"`
	Status         Status     `gorm:"type:varchar(16);not null;index:idx_tickets_customer_status,priority:2" json:"status"`
	AcknowledgedBy *string    `gorm:"type:varchar(64)" json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	RaisedAt       time.Time  `gorm:"not null;index" json:"raisedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (Ticket) TableName() string { return "escalation_tickets" }
