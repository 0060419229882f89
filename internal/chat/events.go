package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/suPer8Hu/support-desk/internal/common"
)

// Inbound events.
const (
	EventJoinChat        = "join_chat"
	EventJoinChatAsAgent = "join_chat_as_agent"
	EventHumanJoined     = "human_joined"
	EventSendMessage     = "send_message"
	EventEndSession      = "end_session"
	EventLeaveChat       = "leave_chat"
)

// Outbound events.
const (
	EventReceiveMessage   = "receive_message"
	EventTypingIndicator  = "typing_indicator"
	EventHumanNeeded      = "human_needed"
	EventStaffLeft        = "staff_left"
	EventJoinConfirmation = "join_confirmation"
	EventError            = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CustomerRef accepts both "customerId" and the older "userId" key.
type CustomerRef struct {
	CustomerID common.FlexID `json:"customerId"`
	UserID     common.FlexID `json:"userId"`
}

func (c CustomerRef) Customer() string {
	if c.CustomerID != "" {
		return c.CustomerID.String()
	}
	return c.UserID.String()
}

type JoinChatPayload struct {
	CustomerRef
}

type AgentPayload struct {
	CustomerRef
	AgentName string `json:"agentName" validate:"max=64"`
}

type SendMessagePayload struct {
	CustomerRef
	Message    string `json:"message" validate:"required,max=4000"`
	IsCustomer bool   `json:"isCustomer"`
	ID         string `json:"id" validate:"max=128"`
	Username   string `json:"username" validate:"max=64"`
}

type LeaveChatPayload struct {
	CustomerRef
}

type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type HumanNeededPayload struct {
	CustomerID string `json:"customerId"`
	Message    string `json:"message"`
	Reason     string `json:"reason"`
}

type HumanJoinedPayload struct {
	CustomerID string `json:"customerId"`
	AgentName  string `json:"agentName"`
}

type StaffLeftPayload struct {
	CustomerID  string `json:"customerId"`
	Reason      string `json:"reason"`
	CanContinue bool   `json:"canContinue"`
}

type JoinConfirmationPayload struct {
	CustomerID string `json:"customerId"`
	Message    string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodePayload(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return invalid("missing payload", nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalid("malformed payload", err)
	}
	if err := validate.Struct(out); err != nil {
		return invalid(describeValidation(err), err)
	}
	return nil
}

// decodeJoinChat accepts a bare id ("42" or 42) or {"customerId": ...}.
func decodeJoinChat(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var id common.FlexID
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", invalid("malformed payload", err)
		}
		return id.String(), nil
	}
	var p JoinChatPayload
	if err := decodePayload(data, &p); err != nil {
		return "", err
	}
	return p.Customer(), nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid payload: " + strings.Join(fields, ", ")
}
