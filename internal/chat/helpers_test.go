package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/ai"
	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/sentiment"
)

type scriptedProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]ai.Message
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *scriptedProvider) lastCall() []ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

type fixedEmotion struct{ res sentiment.Result }

func (f fixedEmotion) Classify(context.Context, string) sentiment.Result { return f.res }

type emitted struct {
	aud     Audience
	event   string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
	rooms  map[string]map[string]bool
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{rooms: make(map[string]map[string]bool)}
}

func (e *recordingEmitter) Emit(aud Audience, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{aud: aud, event: event, payload: payload})
}

func (e *recordingEmitter) Join(connID, room string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rooms[room] == nil {
		e.rooms[room] = make(map[string]bool)
	}
	e.rooms[room][connID] = true
}

func (e *recordingEmitter) Leave(connID, room string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rooms[room], connID)
}

func (e *recordingEmitter) inRoom(connID, room string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[room][connID]
}

func (e *recordingEmitter) named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) sequence() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.event)
	}
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	router   *Router
	store    *MemoryStore
	emitter  *recordingEmitter
	clock    *fakeClock
	provider *scriptedProvider
	sleeps   []time.Duration
	sleepMu  sync.Mutex
}

func (h *harness) slept() []time.Duration {
	h.sleepMu.Lock()
	defer h.sleepMu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

func newHarness(t *testing.T, mutate func(*RouterOptions)) *harness {
	t.Helper()
	h := &harness{
		emitter:  newRecordingEmitter(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		provider: &scriptedProvider{reply: "Hello! How can I help you today?"},
	}
	log := zerolog.Nop()
	h.store = NewMemoryStore(2*time.Second, 10, log)
	h.store.now = h.clock.Now

	responder := NewResponseGenerator(h.provider, ResponderConfig{}, log)
	policy, err := NewPolicy(DefaultKeywords(), sentiment.NewSafe(sentiment.NewLexicon(nil), 0, log), responder.Available, -0.4)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	opts := RouterOptions{
		Now: h.clock.Now,
		Sleep: func(d time.Duration) {
			h.sleepMu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.sleepMu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.router = NewRouter(h.store, policy, responder, h.emitter, opts, log)
	return h
}

func customer(id string) auth.Identity {
	return auth.Identity{ID: id, Username: "cust" + id, Role: auth.RoleCustomer}
}

func staff(id string) auth.Identity {
	return auth.Identity{ID: id, Username: "agent" + id, Role: auth.RoleStaff}
}

func errOracle() error { return errors.New("oracle down") }
