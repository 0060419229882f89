package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/ai"
)

func TestResponseGenerator_UsesOracleWithRollingContext(t *testing.T) {
	prov := &scriptedProvider{reply: "  sure thing  "}
	g := NewResponseGenerator(prov, ResponderConfig{ContextTurns: 10, HistoryLimit: 20}, zerolog.Nop())

	for i := 0; i < 12; i++ {
		got := g.Generate(context.Background(), "7", fmt.Sprintf("question %d", i))
		if got != "sure thing" {
			t.Fatalf("unexpected reply %q", got)
		}
	}

	last := prov.lastCall()
	// system prompt plus the 10 newest history entries
	if len(last) != 11 {
		t.Fatalf("expected 11 prompt messages, got %d", len(last))
	}
	if last[0].Role != ai.RoleSystem || last[0].Content != SystemPrompt {
		t.Fatalf("first prompt message must be the system prompt")
	}
	if tail := last[len(last)-1]; tail.Role != ai.RoleUser || tail.Content != "question 11" {
		t.Fatalf("newest message must be last, got %+v", tail)
	}
	if n := g.HistoryLen("7"); n != 20 {
		t.Fatalf("history must be capped at 20, got %d", n)
	}
}

func TestResponseGenerator_FallbackOnOracleError(t *testing.T) {
	prov := &scriptedProvider{err: errOracle()}
	g := NewResponseGenerator(prov, ResponderConfig{}, zerolog.Nop())

	got := g.Generate(context.Background(), "7", "How long does DELIVERY take?")
	if got != cannedReplies[1].response {
		t.Fatalf("expected delivery canned reply, got %q", got)
	}

	got = g.Generate(context.Background(), "7", "zzz")
	found := false
	for _, r := range genericReplies {
		if r == got {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a generic reply, got %q", got)
	}
}

type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) Chat(ctx context.Context, _ []ai.Message, _ ai.Options) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResponseGenerator_TimeoutFallsBack(t *testing.T) {
	g := NewResponseGenerator(slowProvider{}, ResponderConfig{Timeout: 20 * time.Millisecond}, zerolog.Nop())
	got := g.Generate(context.Background(), "7", "hello")
	if got != cannedReplies[0].response {
		t.Fatalf("expected greeting fallback, got %q", got)
	}
}

func TestResponseGenerator_NoProvider(t *testing.T) {
	g := NewResponseGenerator(nil, ResponderConfig{}, zerolog.Nop())
	if g.Available() {
		t.Fatalf("generator without provider must be unavailable")
	}
	if got := g.Generate(context.Background(), "7", "thanks a lot"); got != cannedReplies[5].response {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := g.Generate(context.Background(), "7", "   "); got != emptyPrompt {
		t.Fatalf("unexpected reply for empty message %q", got)
	}
	if got := g.Welcome(context.Background(), "7"); got != DefaultWelcome {
		t.Fatalf("unexpected welcome %q", got)
	}
}

func TestResponseGenerator_WelcomeLeavesNoHistory(t *testing.T) {
	prov := &scriptedProvider{reply: "Hi, welcome to eShop!"}
	g := NewResponseGenerator(prov, ResponderConfig{}, zerolog.Nop())

	if got := g.Welcome(context.Background(), "7"); got != "Hi, welcome to eShop!" {
		t.Fatalf("unexpected welcome %q", got)
	}
	if n := g.HistoryLen("7"); n != 0 {
		t.Fatalf("welcome probe must not stay in history, got %d entries", n)
	}
	if last := prov.lastCall(); last[len(last)-1].Content != welcomeProbe {
		t.Fatalf("welcome must send the probe")
	}

	prov.err = errOracle()
	if got := g.Welcome(context.Background(), "7"); got != DefaultWelcome {
		t.Fatalf("expected default welcome on failure, got %q", got)
	}
}
