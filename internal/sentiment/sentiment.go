// Package sentiment classifies the emotional tone of customer messages.
package sentiment

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	EmotionNeutral    = "neutral"
	EmotionHappy      = "happy"
	EmotionSad        = "sad"
	EmotionFrustrated = "frustrated"
	EmotionAngry      = "angry"
)

// Result is a classification of one message. Score is in [-1, 1] and
// Confidence in [0, 1].
type Result struct {
	Score      float64 `json:"score"`
	Emotion    string  `json:"emotion"`
	NeedsHuman bool    `json:"needsHuman"`
	Confidence float64 `json:"confidence"`
}

// Neutral is what callers see when classification is unavailable.
func Neutral() Result {
	return Result{Score: 0, Emotion: EmotionNeutral, NeedsHuman: false, Confidence: 0.5}
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Safe wraps a Classifier so that errors, timeouts and out-of-range answers
// collapse to Neutral. It never returns an error.
type Safe struct {
	inner   Classifier
	timeout time.Duration
	log     zerolog.Logger
}

func NewSafe(inner Classifier, timeout time.Duration, log zerolog.Logger) *Safe {
	return &Safe{
		inner:   inner,
		timeout: timeout,
		log:     log.With().Str("component", "sentiment").Logger(),
	}
}

func (s *Safe) Classify(ctx context.Context, text string) Result {
	if s == nil || s.inner == nil {
		return Neutral()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.inner.Classify(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Msg("sentiment classification failed, treating as neutral")
		return Neutral()
	}
	if res.Score < -1 || res.Score > 1 || res.Confidence < 0 || res.Confidence > 1 {
		s.log.Warn().Float64("score", res.Score).Float64("confidence", res.Confidence).Msg("sentiment result out of range, treating as neutral")
		return Neutral()
	}
	if res.Emotion == "" {
		res.Emotion = EmotionNeutral
	}
	return res
}
