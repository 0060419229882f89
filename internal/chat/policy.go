package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/support-desk/internal/sentiment"
)

// Rule names the cascade step that produced a Decision.
type Rule string

const (
	RuleNonCustomer       Rule = "non_customer"
	RuleBotUnavailable    Rule = "bot_unavailable"
	RuleHumanAssigned     Rule = "human_assigned"
	RuleHumanRequest      Rule = "human_request"
	RuleEscalationKeyword Rule = "escalation_keyword"
	RuleFinancial         Rule = "financial"
	RuleNegativeEmotion   Rule = "negative_emotion"
	RuleComplexIssue      Rule = "complex_issue"
	RuleLongConversation  Rule = "long_conversation"
	RuleDefault           Rule = "default"
)

const (
	longHistoryTurns    = 8
	longMessageChars    = 100
	longMessagesNeeded  = 3
	minEmotionConfident = 0.7
)

var ruleReasons = map[Rule]string{
	RuleHumanAssigned:     "Human agent assigned",
	RuleHumanRequest:      "Customer asked for a human agent",
	RuleEscalationKeyword: "Escalation keyword detected",
	RuleFinancial:         "Payment or refund issue",
	RuleNegativeEmotion:   "Negative emotion detected",
	RuleComplexIssue:      "Complex support issue",
	RuleLongConversation:  "Long, complex conversation",
}

// Decision is the outcome of one policy evaluation. UseBot=false means the
// message goes to a human.
type Decision struct {
	UseBot bool
	Rule   Rule
	Reason string
	// Matched is the keyword or phrase that fired, if any.
	Matched string
}

type PolicyInput struct {
	Text       string
	CustomerID string
	// History holds the conversation's messages before Text.
	History       []Message
	IsCustomer    bool
	HumanAssigned bool
}

type EmotionClassifier interface {
	Classify(ctx context.Context, text string) sentiment.Result
}

// Policy decides, per customer message, between the bot and a human. Rules
// are evaluated in a fixed order and the first one that fires wins.
type Policy struct {
	kw           *compiledKeywords
	emotions     EmotionClassifier
	botAvailable func() bool
	threshold    float64
}

func NewPolicy(kw Keywords, emotions EmotionClassifier, botAvailable func() bool, negativeThreshold float64) (*Policy, error) {
	compiled, err := kw.compile()
	if err != nil {
		return nil, err
	}
	if botAvailable == nil {
		botAvailable = func() bool { return true }
	}
	if negativeThreshold == 0 {
		negativeThreshold = -0.4
	}
	return &Policy{
		kw:           compiled,
		emotions:     emotions,
		botAvailable: botAvailable,
		threshold:    negativeThreshold,
	}, nil
}

func (p *Policy) ShouldUseBot(ctx context.Context, in PolicyInput) bool {
	return p.Decide(ctx, in).UseBot
}

func (p *Policy) Decide(ctx context.Context, in PolicyInput) Decision {
	if !in.IsCustomer {
		return bot(RuleNonCustomer)
	}
	if !p.botAvailable() {
		return bot(RuleBotUnavailable)
	}
	if in.HumanAssigned {
		return human(RuleHumanAssigned, "")
	}

	lower := strings.ToLower(in.Text)

	if m, ok := containsAny(lower, p.kw.humanRequests); ok {
		return human(RuleHumanRequest, m)
	}
	if m, ok := containsAny(lower, p.kw.escalation); ok {
		return human(RuleEscalationKeyword, m)
	}
	if p.kw.money != nil && p.kw.refund != nil {
		if amount := p.kw.money.FindString(in.Text); amount != "" && p.kw.refund.MatchString(in.Text) {
			return human(RuleFinancial, amount)
		}
	}
	if p.emotions != nil {
		res := p.emotions.Classify(ctx, in.Text)
		if res.NeedsHuman || (res.Score < p.threshold && res.Confidence > minEmotionConfident) {
			return human(RuleNegativeEmotion, res.Emotion)
		}
	}
	if issue, ok := containsAny(lower, p.kw.complex); ok {
		if _, intense := containsAny(lower, p.kw.intensity); intense {
			return human(RuleComplexIssue, issue)
		}
	}
	if isLongConversation(in.History, in.Text) {
		return human(RuleLongConversation, "")
	}
	return bot(RuleDefault)
}

func isLongConversation(history []Message, text string) bool {
	if len(history) <= longHistoryTurns || utf8.RuneCountInString(text) <= longMessageChars {
		return false
	}
	long := 0
	for _, m := range history {
		if m.Author == AuthorCustomer && utf8.RuneCountInString(m.Content) > longMessageChars {
			long++
		}
	}
	return long >= longMessagesNeeded
}

func bot(rule Rule) Decision {
	return Decision{UseBot: true, Rule: rule}
}

func human(rule Rule, matched string) Decision {
	return Decision{UseBot: false, Rule: rule, Reason: ruleReasons[rule], Matched: matched}
}
