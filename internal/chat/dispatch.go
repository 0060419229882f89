package chat

import (
	"context"
	"encoding/json"
)

// Handle decodes one inbound event and runs the matching operation. Errors
// are meant for the originating connection only.
func (r *Router) Handle(ctx context.Context, c *Conn, event string, data json.RawMessage) error {
	switch event {
	case EventJoinChat:
		customerID, err := decodeJoinChat(data)
		if err != nil {
			return err
		}
		return r.Join(ctx, c, customerID)

	case EventJoinChatAsAgent:
		var p AgentPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		return r.JoinAsAgent(ctx, c, p.Customer(), p.AgentName)

	case EventHumanJoined:
		var p AgentPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		return r.AnnounceAgent(ctx, c, p.Customer(), p.AgentName)

	case EventSendMessage:
		var p SendMessagePayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		return r.SendMessage(ctx, c, SendMessageInput{
			CustomerID: p.Customer(),
			Text:       p.Message,
			IsCustomer: p.IsCustomer,
			ID:         p.ID,
			Username:   p.Username,
		})

	case EventEndSession:
		var p AgentPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		return r.EndSession(ctx, c, p.Customer(), p.AgentName)

	case EventLeaveChat:
		var p LeaveChatPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		return r.LeaveChat(ctx, c, p.Customer())

	default:
		return invalid("unknown event: "+event, nil)
	}
}
