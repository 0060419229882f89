package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/support-desk/internal/sentiment"
)

func newTestPolicy(t *testing.T, emotion sentiment.Result, botAvailable bool) *Policy {
	t.Helper()
	p, err := NewPolicy(DefaultKeywords(), fixedEmotion{res: emotion}, func() bool { return botAvailable }, -0.4)
	require.NoError(t, err)
	return p
}

func customerInput(text string) PolicyInput {
	return PolicyInput{Text: text, CustomerID: "7", IsCustomer: true}
}

func TestPolicy_Cascade(t *testing.T) {
	neutral := sentiment.Neutral()
	long := strings.Repeat("x", 120)

	longHistory := make([]Message, 0, 9)
	for i := 0; i < 9; i++ {
		author := AuthorBot
		content := "ok"
		if i%2 == 0 {
			author = AuthorCustomer
			content = long
		}
		longHistory = append(longHistory, Message{Author: author, Content: content})
	}

	tests := []struct {
		name    string
		in      PolicyInput
		emotion sentiment.Result
		bot     bool
		want    Rule
		useBot  bool
	}{
		{"staff message", PolicyInput{Text: "I demand a manager", IsCustomer: false}, neutral, true, RuleNonCustomer, true},
		{"bot unavailable", customerInput("I want to speak to human"), neutral, false, RuleBotUnavailable, true},
		{"human assigned", PolicyInput{Text: "hello", IsCustomer: true, HumanAssigned: true}, neutral, true, RuleHumanAssigned, false},
		{"human request", customerInput("can I talk to a real person please"), neutral, true, RuleHumanRequest, false},
		{"escalation stem", customerInput("this is unmanageable"), neutral, true, RuleEscalationKeyword, false},
		{"financial", customerInput("I paid 40 dollars, where is my payment"), neutral, true, RuleFinancial, false},
		{"money without refund terms", customerInput("is the $20 hat in blue"), neutral, true, RuleDefault, true},
		{"negative emotion needs human", customerInput("hmm"), sentiment.Result{NeedsHuman: true, Emotion: "angry", Confidence: 0.2}, true, RuleNegativeEmotion, false},
		{"negative emotion score", customerInput("hmm"), sentiment.Result{Score: -0.7, Confidence: 0.8, Emotion: "sad"}, true, RuleNegativeEmotion, false},
		{"negative score low confidence", customerInput("hmm"), sentiment.Result{Score: -0.7, Confidence: 0.5}, true, RuleDefault, true},
		{"complex and intense", customerInput("my package never arrived again"), neutral, true, RuleComplexIssue, false},
		{"complex without intensity", customerInput("the lid was damaged"), neutral, true, RuleDefault, true},
		{"long conversation", PolicyInput{Text: long, IsCustomer: true, History: longHistory}, neutral, true, RuleLongConversation, false},
		{"long message short history", PolicyInput{Text: long, IsCustomer: true, History: longHistory[:8]}, neutral, true, RuleDefault, true},
		{"plain greeting", customerInput("hello"), neutral, true, RuleDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(t, tt.emotion, tt.bot)
			d := p.Decide(context.Background(), tt.in)
			assert.Equal(t, tt.want, d.Rule)
			assert.Equal(t, tt.useBot, d.UseBot)
			if !d.UseBot {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestPolicy_HumanRequestShortCircuits(t *testing.T) {
	p := newTestPolicy(t, sentiment.Result{NeedsHuman: true}, true)
	d := p.Decide(context.Background(), customerInput("hi, live agent please"))
	assert.Equal(t, RuleHumanRequest, d.Rule)
	assert.Equal(t, "live agent", d.Matched)
}

func TestPolicy_RefundScenario(t *testing.T) {
	p := newTestPolicy(t, sentiment.Neutral(), true)
	assert.False(t, p.ShouldUseBot(context.Background(), customerInput("I want a refund, this is $200 and unacceptable")))
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("escalation:\n  - pineapple\nmoney_pattern: ''\n"), 0o600))

	kw, err := LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pineapple"}, kw.Escalation)
	assert.Equal(t, DefaultKeywords().HumanRequests, kw.HumanRequests)

	p, err := NewPolicy(kw, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, RuleEscalationKeyword, p.Decide(context.Background(), customerInput("PINEAPPLE pizza")).Rule)
	assert.Equal(t, RuleDefault, p.Decide(context.Background(), customerInput("can I get a manager")).Rule)
	// empty money pattern disables the financial rule
	assert.Equal(t, RuleDefault, p.Decide(context.Background(), customerInput("$50 payment")).Rule)
}

func TestLoadKeywords_BadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refund_pattern: '(['\n"), 0o600))
	_, err := LoadKeywords(path)
	require.Error(t, err)

	_, err = LoadKeywords(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
