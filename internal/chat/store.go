package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConversationStore owns every conversation and its dedup window.
type ConversationStore interface {
	// Touch creates the conversation if it does not exist yet.
	Touch(userID string)
	Append(msg Message)
	// History returns a copy of the stored messages, oldest first.
	History(userID string) []Message
	Get(userID string) (Conversation, bool)
	State(userID string) State
	// SetState moves the conversation to state and returns the previous one.
	SetState(userID string, state State, agentName string) State
	// Escalate moves a bot-handled conversation to StateEscalating. It does
	// nothing when a human is already assigned.
	Escalate(userID string) State
	SetAgentName(userID, agentName string)
	// SeenRecently reports whether content was already recorded for userID
	// inside the dedup window, and records it when it was not.
	SeenRecently(userID, content string, now time.Time) bool
	Clear(userID string)
	List() []ConversationSummary
}

type conversation struct {
	messages  []Message
	state     State
	agentName string
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore keeps conversations in process memory. Nothing survives a
// restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	// dedup windows live apart from conversations so that a rejected
	// message does not create a conversation.
	windows       map[string]*dedupWindow
	window        time.Duration
	capacity      int
	now           func() time.Time
	log           zerolog.Logger
}

func NewMemoryStore(window time.Duration, capacity int, log zerolog.Logger) *MemoryStore {
	if window <= 0 {
		window = 2 * time.Second
	}
	if capacity <= 0 {
		capacity = 10
	}
	return &MemoryStore{
		conversations: make(map[string]*conversation),
		windows:       make(map[string]*dedupWindow),
		window:        window,
		capacity:      capacity,
		now:           time.Now,
		log:           log.With().Str("component", "conversation_store").Logger(),
	}
}

// getOrCreate must be called with the write lock held.
func (s *MemoryStore) getOrCreate(userID string) *conversation {
	c, ok := s.conversations[userID]
	if !ok {
		now := s.now()
		c = &conversation{
			state:     StateBot,
			createdAt: now,
			updatedAt: now,
		}
		s.conversations[userID] = c
		s.log.Debug().Str("user_id", userID).Msg("conversation created")
	}
	return c
}

func (s *MemoryStore) Touch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(userID)
}

func (s *MemoryStore) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreate(msg.UserID)
	c.messages = append(c.messages, msg)
	c.updatedAt = s.now()
}

func (s *MemoryStore) History(userID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[userID]
	if !ok {
		return nil
	}
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (s *MemoryStore) Get(userID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[userID]
	if !ok {
		return Conversation{}, false
	}
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Conversation{
		UserID:    userID,
		Messages:  msgs,
		State:     c.state,
		AgentName: c.agentName,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}, true
}

func (s *MemoryStore) State(userID string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.conversations[userID]; ok {
		return c.state
	}
	return StateBot
}

func (s *MemoryStore) SetState(userID string, state State, agentName string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreate(userID)
	prev := c.state
	c.state = state
	if state == StateHuman {
		c.agentName = agentName
	} else {
		c.agentName = ""
	}
	c.updatedAt = s.now()
	return prev
}

func (s *MemoryStore) Escalate(userID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreate(userID)
	prev := c.state
	if prev != StateHuman {
		c.state = StateEscalating
		c.updatedAt = s.now()
	}
	return prev
}

func (s *MemoryStore) SetAgentName(userID, agentName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(userID).agentName = agentName
}

func (s *MemoryStore) SeenRecently(userID, content string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[userID]
	if !ok {
		w = newDedupWindow(s.capacity, s.window)
		s.windows[userID] = w
	}
	return w.seen(content, now)
}

func (s *MemoryStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	delete(s.windows, userID)
	s.log.Debug().Str("user_id", userID).Msg("conversation cleared")
}

// List returns summaries ordered by most recent activity first.
func (s *MemoryStore) List() []ConversationSummary {
	s.mu.RLock()
	out := make([]ConversationSummary, 0, len(s.conversations))
	for id, c := range s.conversations {
		out = append(out, ConversationSummary{
			UserID:       id,
			State:        c.state,
			AgentName:    c.agentName,
			MessageCount: len(c.messages),
			LastActivity: c.updatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

type dedupEntry struct {
	content string
	at      time.Time
}

// dedupWindow is a fixed-capacity ring of recently delivered contents.
type dedupWindow struct {
	entries []dedupEntry
	next    int
	window  time.Duration
}

func newDedupWindow(capacity int, window time.Duration) *dedupWindow {
	return &dedupWindow{entries: make([]dedupEntry, 0, capacity), window: window}
}

func (d *dedupWindow) seen(content string, now time.Time) bool {
	for _, e := range d.entries {
		if e.content == content && now.Sub(e.at) < d.window {
			return true
		}
	}
	entry := dedupEntry{content: content, at: now}
	if len(d.entries) < cap(d.entries) {
		d.entries = append(d.entries, entry)
		return false
	}
	d.entries[d.next] = entry
	d.next = (d.next + 1) % len(d.entries)
	return false
}
