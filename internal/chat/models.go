package chat

import "time"

type Author string

const (
	AuthorCustomer Author = "customer"
	AuthorBot      Author = "bot"
	AuthorStaff    Author = "staff"
	AuthorSystem   Author = "system"
)

// State is where a conversation is routed. A conversation has a human agent
// exactly when its state is StateHuman.
type State string

const (
	StateBot        State = "bot"
	StateEscalating State = "escalating"
	StateHuman      State = "human"
)

// Message is immutable once appended.
type Message struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Author      Author    `json:"author"`
	Content     string    `json:"message"`
	IsCustomer  bool      `json:"isCustomer"`
	IsAutomatic bool      `json:"isAutomatic"`
	IsHandoff   bool      `json:"isHandoff"`
	IsSystem    bool      `json:"isSystem"`
	Username    string    `json:"username,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Conversation is a point-in-time copy of a customer's conversation.
type Conversation struct {
	UserID    string    `json:"userId"`
	Messages  []Message `json:"messages"`
	State     State     `json:"state"`
	AgentName string    `json:"agentName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c Conversation) HasHumanAgent() bool { return c.State == StateHuman }

type ConversationSummary struct {
	UserID       string    `json:"userId"`
	State        State     `json:"state"`
	AgentName    string    `json:"agentName,omitempty"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
}
