package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/common"
	"github.com/suPer8Hu/support-desk/internal/metrics"
)

const (
	// StaffRoom receives every event meant for the staff pool.
	StaffRoom = "staff"

	handoffNotice       = "I notice you might be experiencing some frustration. I'm connecting you with a customer service representative who will be with you shortly to help resolve your concern."
	defaultAgentName    = "Customer Support"
	defaultDepartedName = "Customer support"

	staffLeftEnded        = "agent_ended_session"
	staffLeftDisconnected = "agent_disconnected"
)

// RoomFor names the per-customer room.
func RoomFor(customerID string) string { return "user_" + customerID }

// Audience selects recipients. A connection in several selected rooms, or
// also listed in Conns, receives the event once.
type Audience struct {
	Rooms []string
	Conns []string
}

// Emitter delivers events to connections and manages room membership.
type Emitter interface {
	Emit(aud Audience, event string, payload any)
	Join(connID, room string)
	Leave(connID, room string)
}

// Archiver mirrors stored messages somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, msg Message) error
}

// Escalation is one human_needed decision. ID is unique per decision.
type Escalation struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Message    string    `json:"message"`
	Reason     string    `json:"reason"`
	Rule       Rule      `json:"rule"`
	Matched    string    `json:"matched,omitempty"`
	At         time.Time `json:"at"`
}

// EscalationNotifier is told about every human_needed decision.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, e Escalation) error
}

// Conn is the router's view of one live connection. Its identity never
// changes after Connect.
type Conn struct {
	ID       string
	Identity auth.Identity

	mu        sync.Mutex
	agentFor  string
	agentName string
}

func (c *Conn) AgentFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentFor
}

func (c *Conn) setAgent(customerID, name string) {
	c.mu.Lock()
	c.agentFor = customerID
	c.agentName = name
	c.mu.Unlock()
}

func (c *Conn) agent() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentFor, c.agentName
}

type RouterOptions struct {
	TypingDelayPerChar time.Duration
	TypingDelayMax     time.Duration
	// CancelBotOnHandoff drops a pending bot reply when a human took over
	// the conversation while it was being prepared.
	CancelBotOnHandoff bool
	WelcomeEnabled     bool
	WelcomeDelay       time.Duration
	// BackgroundTimeout bounds archive and notification calls.
	BackgroundTimeout time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

type Router struct {
	store     ConversationStore
	policy    *Policy
	responder Responder
	emitter   Emitter
	archiver  Archiver
	notifier  EscalationNotifier
	opts      RouterOptions
	log       zerolog.Logger

	mu sync.RWMutex
	// customer id -> connection ids authenticated as that customer
	customerConns map[string]map[string]struct{}

	wg sync.WaitGroup
}

func NewRouter(store ConversationStore, policy *Policy, responder Responder, emitter Emitter, opts RouterOptions, log zerolog.Logger) *Router {
	if opts.TypingDelayPerChar <= 0 {
		opts.TypingDelayPerChar = 20 * time.Millisecond
	}
	if opts.TypingDelayMax <= 0 {
		opts.TypingDelayMax = 1500 * time.Millisecond
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Router{
		store:         store,
		policy:        policy,
		responder:     responder,
		emitter:       emitter,
		opts:          opts,
		log:           log.With().Str("component", "chat_router").Logger(),
		customerConns: make(map[string]map[string]struct{}),
	}
}

func (r *Router) SetArchiver(a Archiver) { r.archiver = a }

func (r *Router) SetNotifier(n EscalationNotifier) { r.notifier = n }

func (r *Router) Store() ConversationStore { return r.store }

// Wait blocks until every background reply, welcome and hook call has
// finished.
func (r *Router) Wait() { r.wg.Wait() }

// Connect binds an authenticated identity to a connection. Staff
// connections join the staff room.
func (r *Router) Connect(connID string, id auth.Identity) *Conn {
	c := &Conn{ID: connID, Identity: id}
	if id.IsStaff() {
		r.emitter.Join(connID, StaffRoom)
	} else {
		r.mu.Lock()
		set, ok := r.customerConns[id.ID]
		if !ok {
			set = make(map[string]struct{})
			r.customerConns[id.ID] = set
		}
		set[connID] = struct{}{}
		r.mu.Unlock()
	}
	metrics.RecordConnectionOpened(string(id.Role))
	r.log.Debug().Str("conn_id", connID).Str("user_id", id.ID).Str("role", string(id.Role)).Msg("connection bound")
	return c
}

// Disconnect releases a connection. An agent that drops while assigned is
// treated like an ended session for that customer.
func (r *Router) Disconnect(c *Conn) {
	if customerID, agentName := c.agent(); customerID != "" {
		r.log.Info().Str("customer_id", customerID).Str("agent", agentName).Msg("agent disconnected")
		r.handBack(customerID, agentName, staffLeftDisconnected)
		c.setAgent("", "")
	}

	if c.Identity.IsCustomer() {
		r.mu.Lock()
		if set, ok := r.customerConns[c.Identity.ID]; ok {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(r.customerConns, c.Identity.ID)
			}
		}
		r.mu.Unlock()
	}
	metrics.RecordConnectionClosed(string(c.Identity.Role))
}

func validCustomerID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != "undefined"
}

func (r *Router) Join(ctx context.Context, c *Conn, customerID string) error {
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}
	if c.Identity.IsCustomer() && c.Identity.ID != customerID {
		return unauthorized("Unauthorized access")
	}

	r.emitter.Join(c.ID, RoomFor(customerID))
	r.store.Touch(customerID)
	r.responder.Reset(customerID)
	r.log.Debug().Str("customer_id", customerID).Str("conn_id", c.ID).Msg("joined chat")

	if r.opts.WelcomeEnabled && c.Identity.IsCustomer() {
		r.goBackground(func() { r.welcome(customerID) })
	}
	return nil
}

func (r *Router) welcome(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.BackgroundTimeout+r.opts.WelcomeDelay)
	text := r.responder.Welcome(ctx, customerID)
	cancel()
	if r.opts.WelcomeDelay > 0 {
		r.opts.Sleep(r.opts.WelcomeDelay)
	}
	msg := r.newMessage(customerID, AuthorBot, text)
	msg.IsAutomatic = true
	r.record(msg)
	r.emitter.Emit(Audience{Rooms: []string{RoomFor(customerID)}}, EventReceiveMessage, msg)
}

func (r *Router) JoinAsAgent(ctx context.Context, c *Conn, customerID, agentName string) error {
	if !c.Identity.IsStaff() {
		return unauthorized("Unauthorized: Only support staff can join as agents")
	}
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}
	if strings.TrimSpace(agentName) == "" {
		agentName = c.Identity.Username
	}

	r.emitter.Join(c.ID, RoomFor(customerID))
	c.setAgent(customerID, agentName)
	prev := r.store.SetState(customerID, StateHuman, agentName)
	metrics.RecordStateTransition(string(prev), string(StateHuman))
	r.log.Info().Str("customer_id", customerID).Str("agent", agentName).Str("from_state", string(prev)).Msg("agent joined conversation")

	r.emitter.Emit(Audience{Conns: []string{c.ID}}, EventJoinConfirmation, JoinConfirmationPayload{
		CustomerID: customerID,
		Message:    fmt.Sprintf("You are now assisting customer %s", customerID),
	})
	return nil
}

// AnnounceAgent tells the customer a human has joined.
func (r *Router) AnnounceAgent(ctx context.Context, c *Conn, customerID, agentName string) error {
	if !c.Identity.IsStaff() {
		return unauthorized("Unauthorized: Only support staff can join chats")
	}
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}
	if strings.TrimSpace(agentName) == "" {
		agentName = defaultAgentName
	}
	if r.store.State(customerID) == StateHuman {
		r.store.SetAgentName(customerID, agentName)
	}
	r.emitter.Emit(Audience{Rooms: []string{RoomFor(customerID)}}, EventHumanJoined, HumanJoinedPayload{
		CustomerID: customerID,
		AgentName:  agentName,
	})
	return nil
}

type SendMessageInput struct {
	CustomerID string
	Text       string
	// IsCustomer is what the client claimed. The connection's role decides.
	IsCustomer bool
	ID         string
	Username   string
}

func (r *Router) SendMessage(ctx context.Context, c *Conn, in SendMessageInput) error {
	isCustomer := c.Identity.IsCustomer()
	if in.IsCustomer != isCustomer {
		r.log.Debug().Str("conn_id", c.ID).Bool("claimed", in.IsCustomer).Bool("effective", isCustomer).Msg("isCustomer flag overridden by role")
	}

	customerID := strings.TrimSpace(in.CustomerID)
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}

	if r.store.SeenRecently(customerID, in.Text, r.opts.Now()) {
		metrics.DuplicatesDropped.Inc()
		r.log.Debug().Str("customer_id", customerID).Msg("duplicate message dropped")
		return nil
	}

	if isCustomer && c.Identity.ID != customerID {
		return unauthorized("Unauthorized: Cannot send messages on behalf of other users")
	}
	if !isCustomer && !c.Identity.IsStaff() {
		return unauthorized("Unauthorized: Only staff can send support messages")
	}

	author := AuthorStaff
	if isCustomer {
		author = AuthorCustomer
	}
	msg := r.newMessage(customerID, author, in.Text)
	msg.IsCustomer = isCustomer
	msg.Username = c.Identity.Username
	if msg.Username == "" {
		msg.Username = in.Username
	}
	if in.ID != "" {
		msg.ID = in.ID
	}

	if !isCustomer {
		r.record(msg)
		r.emitter.Emit(Audience{
			Rooms: []string{RoomFor(customerID)},
			Conns: r.connsOf(customerID),
		}, EventReceiveMessage, msg)
		return nil
	}

	prior := r.store.History(customerID)
	r.record(msg)

	humanAssigned := r.store.State(customerID) == StateHuman
	decision := r.policy.Decide(ctx, PolicyInput{
		Text:          in.Text,
		CustomerID:    customerID,
		History:       prior,
		IsCustomer:    true,
		HumanAssigned: humanAssigned,
	})

	if !decision.UseBot || humanAssigned {
		r.emitter.Emit(Audience{Rooms: []string{StaffRoom}}, EventReceiveMessage, msg)
	}
	if humanAssigned {
		return nil
	}

	if decision.UseBot {
		r.emitter.Emit(Audience{Rooms: []string{RoomFor(customerID)}}, EventTypingIndicator, TypingPayload{IsTyping: true})
		r.goBackground(func() { r.replyAsBot(customerID, in.Text) })
		return nil
	}

	r.escalate(customerID, in.Text, decision)
	return nil
}

func (r *Router) escalate(customerID, text string, d Decision) {
	prev := r.store.Escalate(customerID)
	metrics.RecordStateTransition(string(prev), string(StateEscalating))
	metrics.Escalations.WithLabelValues(string(d.Rule)).Inc()
	r.log.Info().Str("customer_id", customerID).Str("rule", string(d.Rule)).Str("matched", d.Matched).Msg("escalating to staff")

	r.emitter.Emit(Audience{Rooms: []string{StaffRoom}}, EventHumanNeeded, HumanNeededPayload{
		CustomerID: customerID,
		Message:    text,
		Reason:     d.Reason,
	})

	notice := r.newMessage(customerID, AuthorBot, handoffNotice)
	notice.IsAutomatic = true
	notice.IsHandoff = true
	r.record(notice)
	r.emitter.Emit(Audience{Rooms: []string{RoomFor(customerID)}}, EventReceiveMessage, notice)

	if r.notifier != nil {
		e := Escalation{
			ID:         notice.ID,
			CustomerID: customerID,
			Message:    text,
			Reason:     d.Reason,
			Rule:       d.Rule,
			Matched:    d.Matched,
			At:         notice.Timestamp,
		}
		r.goBackground(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.BackgroundTimeout)
			defer cancel()
			if err := r.notifier.NotifyEscalation(ctx, e); err != nil {
				r.log.Error().Err(err).Str("customer_id", customerID).Msg("publish escalation failed")
			}
		})
	}
}

func (r *Router) replyAsBot(customerID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.BackgroundTimeout*2)
	reply := r.responder.Generate(ctx, customerID, text)
	cancel()

	r.opts.Sleep(r.typingDelay(reply))
	room := Audience{Rooms: []string{RoomFor(customerID)}}
	r.emitter.Emit(room, EventTypingIndicator, TypingPayload{IsTyping: false})

	if r.opts.CancelBotOnHandoff && r.store.State(customerID) == StateHuman {
		r.log.Debug().Str("customer_id", customerID).Msg("bot reply dropped, agent took over")
		return
	}

	msg := r.newMessage(customerID, AuthorBot, reply)
	msg.IsAutomatic = true
	r.record(msg)
	r.emitter.Emit(room, EventReceiveMessage, msg)
}

func (r *Router) typingDelay(reply string) time.Duration {
	d := time.Duration(len(reply)) * r.opts.TypingDelayPerChar
	if d > r.opts.TypingDelayMax {
		return r.opts.TypingDelayMax
	}
	return d
}

// EndSession hands the conversation back to the bot and tells the customer.
func (r *Router) EndSession(ctx context.Context, c *Conn, customerID, agentName string) error {
	if !c.Identity.IsStaff() {
		return unauthorized("Unauthorized: Only support staff can end sessions")
	}
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}
	if strings.TrimSpace(agentName) == "" {
		_, agentName = c.agent()
	}

	r.handBack(customerID, agentName, staffLeftEnded)
	r.emitter.Leave(c.ID, RoomFor(customerID))
	if c.AgentFor() == customerID {
		c.setAgent("", "")
	}
	r.log.Info().Str("customer_id", customerID).Str("agent", agentName).Msg("session ended by agent")
	return nil
}

// LeaveChat drops the agent assignment without telling the customer.
func (r *Router) LeaveChat(ctx context.Context, c *Conn, customerID string) error {
	if !c.Identity.IsStaff() {
		return unauthorized("Unauthorized: Only support staff can leave chats")
	}
	if !validCustomerID(customerID) {
		return invalid("Invalid customer ID", nil)
	}
	prev := r.store.SetState(customerID, StateBot, "")
	metrics.RecordStateTransition(string(prev), string(StateBot))
	r.emitter.Leave(c.ID, RoomFor(customerID))
	c.setAgent("", "")
	r.log.Info().Str("customer_id", customerID).Msg("agent left chat")
	return nil
}

// ClearConversation erases history, routing state and bot context.
func (r *Router) ClearConversation(customerID string) {
	r.store.Clear(customerID)
	r.responder.Reset(customerID)
	r.log.Info().Str("customer_id", customerID).Msg("conversation cleared")
}

func (r *Router) handBack(customerID, agentName, reason string) {
	if strings.TrimSpace(agentName) == "" {
		agentName = defaultDepartedName
	}
	notice := r.newMessage(customerID, AuthorSystem, agentName+" has left the chat. Our virtual assistant will continue to help you, or another representative will assist you shortly.")
	notice.IsSystem = true
	r.record(notice)

	room := Audience{Rooms: []string{RoomFor(customerID)}}
	r.emitter.Emit(room, EventReceiveMessage, notice)
	r.emitter.Emit(room, EventStaffLeft, StaffLeftPayload{CustomerID: customerID, Reason: reason, CanContinue: true})

	prev := r.store.SetState(customerID, StateBot, "")
	metrics.RecordStateTransition(string(prev), string(StateBot))
}

func (r *Router) connsOf(customerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.customerConns[customerID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (r *Router) newMessage(customerID string, author Author, text string) Message {
	return Message{
		ID:        common.MustULID(),
		UserID:    customerID,
		Author:    author,
		Content:   text,
		Timestamp: r.opts.Now().UTC(),
	}
}

func (r *Router) record(msg Message) {
	r.store.Append(msg)
	metrics.MessagesStored.WithLabelValues(string(msg.Author)).Inc()
	if r.archiver == nil {
		return
	}
	r.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.BackgroundTimeout)
		defer cancel()
		if err := r.archiver.Archive(ctx, msg); err != nil {
			r.log.Error().Err(err).Str("customer_id", msg.UserID).Msg("archive message failed")
		}
	})
}

func (r *Router) goBackground(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}
