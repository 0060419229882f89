package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryStore_DedupWindow(t *testing.T) {
	s := NewMemoryStore(2*time.Second, 10, zerolog.Nop())
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if s.SeenRecently("7", "hello", t0) {
		t.Fatalf("first delivery must not be a duplicate")
	}
	if !s.SeenRecently("7", "hello", t0.Add(1999*time.Millisecond)) {
		t.Fatalf("same text inside the window must be a duplicate")
	}
	if s.SeenRecently("7", "hello", t0.Add(2100*time.Millisecond)) {
		t.Fatalf("same text after the window must not be a duplicate")
	}
	if s.SeenRecently("8", "hello", t0) {
		t.Fatalf("windows are per customer")
	}
	if s.SeenRecently("7", "hello there", t0) {
		t.Fatalf("different content must not be a duplicate")
	}
}

func TestMemoryStore_DedupEvictsOldest(t *testing.T) {
	s := NewMemoryStore(2*time.Second, 3, zerolog.Nop())
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.SeenRecently("7", fmt.Sprintf("m%d", i), t0)
	}
	// m0 was evicted by m3
	if s.SeenRecently("7", "m0", t0.Add(time.Millisecond)) {
		t.Fatalf("evicted entry must not be reported as duplicate")
	}
	if !s.SeenRecently("7", "m3", t0.Add(time.Millisecond)) {
		t.Fatalf("newest entry must still be in the window")
	}
}

func TestMemoryStore_AppendHistoryIsCopy(t *testing.T) {
	s := NewMemoryStore(0, 0, zerolog.Nop())
	s.Append(Message{UserID: "7", Content: "a"})
	s.Append(Message{UserID: "7", Content: "b"})

	h := s.History("7")
	if len(h) != 2 || h[0].Content != "a" || h[1].Content != "b" {
		t.Fatalf("unexpected history: %+v", h)
	}
	h[0].Content = "mutated"
	if s.History("7")[0].Content != "a" {
		t.Fatalf("history must be returned as a copy")
	}
	if s.History("unknown") != nil {
		t.Fatalf("unknown conversation must have no history")
	}
}

func TestMemoryStore_StateTransitions(t *testing.T) {
	s := NewMemoryStore(0, 0, zerolog.Nop())

	if got := s.State("7"); got != StateBot {
		t.Fatalf("default state = %q, want bot", got)
	}
	if prev := s.Escalate("7"); prev != StateBot {
		t.Fatalf("escalate prev = %q", prev)
	}
	if got := s.State("7"); got != StateEscalating {
		t.Fatalf("state after escalate = %q", got)
	}

	s.SetState("7", StateHuman, "Alice")
	conv, ok := s.Get("7")
	if !ok || !conv.HasHumanAgent() || conv.AgentName != "Alice" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	// escalation never downgrades a human-handled conversation
	s.Escalate("7")
	if got := s.State("7"); got != StateHuman {
		t.Fatalf("escalate must not override human, got %q", got)
	}

	if prev := s.SetState("7", StateBot, ""); prev != StateHuman {
		t.Fatalf("prev = %q", prev)
	}
	conv, _ = s.Get("7")
	if conv.HasHumanAgent() || conv.AgentName != "" {
		t.Fatalf("agent must be cleared: %+v", conv)
	}
}

func TestMemoryStore_ClearAndList(t *testing.T) {
	s := NewMemoryStore(0, 0, zerolog.Nop())
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	s.now = func() time.Time { return now }

	s.Append(Message{UserID: "1", Content: "x"})
	now = now.Add(time.Minute)
	s.Append(Message{UserID: "2", Content: "y"})
	s.Append(Message{UserID: "2", Content: "z"})

	list := s.List()
	if len(list) != 2 || list[0].UserID != "2" || list[0].MessageCount != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	s.Clear("2")
	if _, ok := s.Get("2"); ok {
		t.Fatalf("conversation must be gone after clear")
	}
	if len(s.List()) != 1 {
		t.Fatalf("expected one conversation left")
	}
}
