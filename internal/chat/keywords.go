package chat

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keywords holds the editable word lists the escalation policy matches
// against. Matching is case-insensitive substring matching.
type Keywords struct {
	HumanRequests []string `yaml:"human_requests"`
	// Escalation entries may be short stems ("manag", "supervis") so that
	// inflections match too.
	Escalation      []string `yaml:"escalation"`
	MoneyPattern    string   `yaml:"money_pattern"`
	RefundPattern   string   `yaml:"refund_pattern"`
	ComplexIssues   []string `yaml:"complex_issues"`
	Intensity       []string `yaml:"intensity"`
	CriticalPhrases []string `yaml:"critical_phrases"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		HumanRequests: []string{
			"speak to human",
			"talk to human",
			"real person",
			"real representative",
			"speak to representative",
			"connect me with agent",
			"connect with support",
			"human support",
			"live agent",
			"human agent",
			"not a bot",
			"stop bot",
		},
		Escalation: []string{
			"manager", "manag", "supervis", "escalate", "escalation", "staff", "speak to", "talk to",
			"urgent", "immediate", "asap", "emergency",
			"complaint", "disappointed", "unhappy", "dissatisfied", "upset", "angry",
			"refund", "money back", "cancel", "cancelation", "cancellation", "return policy", "charge", "overcharged",
			"demand", "lawsuit", "legal", "attorney", "lawyer", "sue", "court",
			"review", "rating", "bbb", "report", "social media",
		},
		MoneyPattern:  `\$\d+|\d+\s*dollars|\d+\s*usd|\d+\s*€|\d+\s*euro`,
		RefundPattern: `refund|return|money back|charge|credit|debit|payment|transaction`,
		ComplexIssues: []string{
			"broken", "damaged", "defective", "missing", "wrong item", "not working",
			"never arrived", "lost package", "charged twice", "account locked", "hacked",
		},
		Intensity: []string{
			"very", "extremely", "really", "!!", "still", "again", "seriously",
			"terrible", "awful", "worst", "ridiculous",
		},
		CriticalPhrases: []string{
			"terrible service",
			"worst experience",
			"speak to manager",
			"speak to supervisor",
			"want to cancel",
			"cancel my order",
			"cancel my account",
			"file a complaint",
			"formal complaint",
			"refund immediately",
			"demand a refund",
			"absolutely unacceptable",
			"extremely disappointed",
			"ridiculous service",
		},
	}
}

// LoadKeywords reads a YAML keyword file. Lists missing from the file keep
// their defaults.
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	b, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file: %w", err)
	}
	if err := yaml.Unmarshal(b, &kw); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords file: %w", err)
	}
	if _, err := kw.compile(); err != nil {
		return Keywords{}, err
	}
	return kw, nil
}

type compiledKeywords struct {
	humanRequests []string
	escalation    []string
	money         *regexp.Regexp
	refund        *regexp.Regexp
	complex       []string
	intensity     []string
}

func (k Keywords) compile() (*compiledKeywords, error) {
	money, err := compilePattern(k.MoneyPattern)
	if err != nil {
		return nil, fmt.Errorf("money pattern: %w", err)
	}
	refund, err := compilePattern(k.RefundPattern)
	if err != nil {
		return nil, fmt.Errorf("refund pattern: %w", err)
	}
	return &compiledKeywords{
		humanRequests: lowerAll(k.HumanRequests),
		escalation:    lowerAll(k.Escalation),
		money:         money,
		refund:        refund,
		complex:       lowerAll(k.ComplexIssues),
		intensity:     lowerAll(k.Intensity),
	}, nil
}

// compilePattern returns nil for an empty pattern so that the rule using it
// never matches.
func compilePattern(p string) (*regexp.Regexp, error) {
	if strings.TrimSpace(p) == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + p)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(text string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return n, true
		}
	}
	return "", false
}
