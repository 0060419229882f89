package sentiment

import (
	"context"
	"strings"
	"unicode"
)

var defaultCriticalPhrases = []string{
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
}

var negativeWords = map[string]float64{
	"angry": 1, "furious": 1, "hate": 1, "horrible": 1, "terrible": 1, "awful": 1,
	"worst": 1, "unacceptable": 1, "ridiculous": 0.8, "useless": 0.8, "scam": 1,
	"disappointed": 0.7, "upset": 0.7, "annoyed": 0.6, "frustrated": 0.8,
	"frustrating": 0.8, "broken": 0.5, "bad": 0.5, "poor": 0.5, "slow": 0.3,
	"late": 0.3, "wrong": 0.4, "never": 0.3, "unhappy": 0.7, "sad": 0.5,
}

var positiveWords = map[string]float64{
	"thanks": 0.6, "thank": 0.6, "great": 0.8, "good": 0.5, "love": 0.9,
	"excellent": 1, "awesome": 0.9, "perfect": 0.9, "happy": 0.8, "helpful": 0.7,
	"nice": 0.5, "amazing": 0.9, "appreciate": 0.7, "wonderful": 0.9,
}

var intensifiers = map[string]float64{
	"very": 1.5, "extremely": 2, "really": 1.3, "so": 1.2, "absolutely": 1.8,
	"totally": 1.5, "completely": 1.5,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true, "isn't": true, "wasn't": true,
}

// Lexicon scores text with a small word list. Critical phrases always flag
// the message for a human.
type Lexicon struct {
	critical []string
}

func NewLexicon(criticalPhrases []string) *Lexicon {
	if len(criticalPhrases) == 0 {
		criticalPhrases = defaultCriticalPhrases
	}
	lower := make([]string, 0, len(criticalPhrases))
	for _, p := range criticalPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return &Lexicon{critical: lower}
}

func (l *Lexicon) Classify(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)
	for _, p := range l.critical {
		if strings.Contains(lower, p) {
			return Result{Score: -0.9, Emotion: EmotionAngry, NeedsHuman: true, Confidence: 0.9}, nil
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var pos, neg float64
	hits := 0
	boost := 1.0
	negate := false
	for _, w := range words {
		if m, ok := intensifiers[w]; ok {
			boost *= m
			continue
		}
		if negators[w] && negativeWords[w] == 0 {
			negate = true
			continue
		}
		if v, ok := negativeWords[w]; ok {
			hits++
			if negate {
				pos += v * 0.5
			} else {
				neg += v * boost
			}
		} else if v, ok := positiveWords[w]; ok {
			hits++
			if negate {
				neg += v * boost
			} else {
				pos += v * boost
			}
		}
		boost = 1.0
		negate = false
	}

	exclaims := strings.Count(text, "!")
	if exclaims >= 2 && neg > 0 {
		neg *= 1.3
	}

	if hits == 0 {
		return Neutral(), nil
	}

	score := (pos - neg) / (pos + neg + 1)
	score = clamp(score, -1, 1)
	confidence := clamp(0.5+0.15*float64(hits), 0, 0.95)

	res := Result{Score: score, Confidence: confidence, Emotion: EmotionNeutral}
	switch {
	case score <= -0.6:
		res.Emotion = EmotionAngry
	case score <= -0.3:
		res.Emotion = EmotionFrustrated
	case score < 0:
		res.Emotion = EmotionSad
	case score >= 0.3:
		res.Emotion = EmotionHappy
	}
	return res, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
