package chat

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/ai"
	"github.com/suPer8Hu/support-desk/internal/metrics"
)

const SystemPrompt = `You are a helpful, friendly customer support assistant for an e-commerce store called eShop.
Your goal is to assist customers with their inquiries about products, orders, shipping, returns, and other related topics.
Be concise, accurate, and friendly in your responses.

Here are some facts about eShop:
- We offer free shipping on orders over $50
- Our return policy allows returns within 30 days of purchase
- We accept all major credit cards, PayPal, and Apple Pay
- Standard shipping takes 3-5 business days
- Express shipping takes 1-2 business days
- New customers can use code "WELCOME10" for 10% off their first purchase
- Our customer service hours are Monday-Friday, 9am-6pm EST

If you don't know the answer to a question, acknowledge that and offer to connect the customer with a human representative.`

const (
	DefaultWelcome = "Welcome to eShop customer support! How can I help you today?"
	welcomeProbe   = "I'm a new customer just browsing the site"
	emptyPrompt    = "I'm here to help! Feel free to ask any questions about our products or services."
)

type cannedReply struct {
	keywords []string
	response string
}

// Checked in order; first keyword hit wins.
var cannedReplies = []cannedReply{
	{
		keywords: []string{"hello", "hi", "hey", "greetings"},
		response: "Hello! Welcome to eShop customer support. How can I help you today?",
	},
	{
		keywords: []string{"shipping", "delivery", "ship", "deliver", "when", "arrive"},
		response: "We typically process and ship orders within 1-2 business days. Standard shipping takes 3-5 business days, while express shipping takes 1-2 business days.",
	},
	{
		keywords: []string{"return", "refund", "exchange", "money back", "policy"},
		response: "Our return policy allows returns within 30 days of purchase. Please ensure the item is in its original packaging. You can initiate a return from your order history page.",
	},
	{
		keywords: []string{"payment", "pay", "credit card", "paypal", "payment methods", "visa", "mastercard", "debit"},
		response: "We accept all major credit cards (Visa, MasterCard, American Express), PayPal, and bank transfers. All payments are securely processed.",
	},
	{
		keywords: []string{"discount", "coupon", "promo", "code", "sale", "offer"},
		response: `You can apply discount codes during checkout. Join our newsletter for exclusive offers and promotions! Use code "WELCOME10" for 10% off your first purchase.`,
	},
	{
		keywords: []string{"thank", "thanks", "appreciate", "helpful"},
		response: "You're welcome! Is there anything else I can help you with today?",
	},
	{
		keywords: []string{"goodbye", "bye", "see you", "talk later", "end chat"},
		response: "Thank you for chatting with us! Feel free to reach out anytime you need assistance. Have a great day!",
	},
}

var genericReplies = []string{
	"I'm not sure I understand your question. Could you please provide more details?",
	"I'd like to help you with that. Could you please elaborate more on your inquiry?",
	"I apologize, but I didn't quite catch that. Could you rephrase your question?",
	"For this specific query, I'll need to connect you with one of our customer service representatives. They'll be with you shortly.",
	"Thank you for your patience. Let me look into this for you. In the meantime, can you provide more information about your question?",
}

// Responder produces bot reply text. It never fails: oracle problems end in
// a canned answer.
type Responder interface {
	Generate(ctx context.Context, conversationID, message string) string
	Welcome(ctx context.Context, conversationID string) string
	Reset(conversationID string)
	Available() bool
}

type ResponderConfig struct {
	// ContextTurns is how many history entries are sent to the oracle.
	ContextTurns int
	// HistoryLimit caps the retained history per conversation.
	HistoryLimit int
	Timeout      time.Duration
	Generation   ai.Options
}

// ResponseGenerator keeps a rolling prompt history per conversation and asks
// a text oracle for replies.
type ResponseGenerator struct {
	provider ai.Provider
	cfg      ResponderConfig
	log      zerolog.Logger

	mu        sync.Mutex
	histories map[string][]ai.Message
	rng       *rand.Rand
}

// NewResponseGenerator accepts a nil provider; every reply then comes from the
// canned tables.
func NewResponseGenerator(provider ai.Provider, cfg ResponderConfig, log zerolog.Logger) *ResponseGenerator {
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 10
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.HistoryLimit < cfg.ContextTurns {
		cfg.HistoryLimit = cfg.ContextTurns
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 150
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.7
	}
	return &ResponseGenerator{
		provider:  provider,
		cfg:       cfg,
		log:       log.With().Str("component", "responder").Logger(),
		histories: make(map[string][]ai.Message),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *ResponseGenerator) Available() bool { return g.provider != nil }

func (g *ResponseGenerator) Generate(ctx context.Context, conversationID, message string) string {
	if strings.TrimSpace(message) == "" {
		return emptyPrompt
	}
	reply, err := g.ask(ctx, conversationID, message)
	if err != nil {
		if !errors.Is(err, errNoProvider) {
			g.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("oracle failed, using fallback reply")
		}
		metrics.BotReplies.WithLabelValues("fallback").Inc()
		return g.Fallback(message)
	}
	metrics.BotReplies.WithLabelValues("oracle").Inc()
	return reply
}

// Welcome greets a newly joined customer. The probe exchange is not kept in
// the prompt history.
func (g *ResponseGenerator) Welcome(ctx context.Context, conversationID string) string {
	reply, err := g.ask(ctx, conversationID, welcomeProbe)
	g.Reset(conversationID)
	if err != nil {
		if !errors.Is(err, errNoProvider) {
			g.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("welcome generation failed")
		}
		return DefaultWelcome
	}
	return reply
}

func (g *ResponseGenerator) Reset(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.histories, conversationID)
}

// Fallback answers from the keyword table, or with a random generic reply.
func (g *ResponseGenerator) Fallback(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedReplies {
		if _, ok := containsAny(lower, c.keywords); ok {
			return c.response
		}
	}
	g.mu.Lock()
	i := g.rng.Intn(len(genericReplies))
	g.mu.Unlock()
	return genericReplies[i]
}

// HistoryLen is the number of retained prompt entries for a conversation.
func (g *ResponseGenerator) HistoryLen(conversationID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.histories[conversationID])
}

var errNoProvider = errors.New("no text oracle configured")

func (g *ResponseGenerator) ask(ctx context.Context, conversationID, message string) (string, error) {
	if g.provider == nil {
		return "", errNoProvider
	}

	g.mu.Lock()
	history := append(g.histories[conversationID], ai.Message{Role: ai.RoleUser, Content: message})
	g.histories[conversationID] = g.trim(history)
	start := len(history) - g.cfg.ContextTurns
	if start < 0 {
		start = 0
	}
	prompt := make([]ai.Message, 0, len(history)-start+1)
	prompt = append(prompt, ai.Message{Role: ai.RoleSystem, Content: SystemPrompt})
	prompt = append(prompt, history[start:]...)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	began := time.Now()
	reply, err := g.provider.Chat(ctx, prompt, g.cfg.Generation)
	metrics.OracleDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		return "", &Error{Kind: KindOracle, Message: g.provider.Name(), Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &Error{Kind: KindOracle, Message: g.provider.Name(), Err: errors.New("empty reply")}
	}

	g.mu.Lock()
	g.histories[conversationID] = g.trim(append(g.histories[conversationID], ai.Message{Role: ai.RoleAssistant, Content: reply}))
	g.mu.Unlock()
	return reply, nil
}

// trim keeps the newest HistoryLimit entries in a fresh slice.
func (g *ResponseGenerator) trim(history []ai.Message) []ai.Message {
	if len(history) <= g.cfg.HistoryLimit {
		return history
	}
	out := make([]ai.Message, g.cfg.HistoryLimit)
	copy(out, history[len(history)-g.cfg.HistoryLimit:])
	return out
}
