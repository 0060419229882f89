package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, 2*time.Second, cfg.DedupWindow)
	assert.Equal(t, 10, cfg.DedupCapacity)
	assert.Equal(t, 1500*time.Millisecond, cfg.TypingDelayMax)
	assert.Equal(t, -0.4, cfg.NegativeSentimentThreshold)
	assert.Equal(t, "support_escalations", cfg.RabbitQueue)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ValidatesProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Unknown")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AI_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")

	t.Setenv("AI_PROVIDER", " Gemini ")
	t.Setenv("GEMINI_API_KEY", "k")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AIProvider)
}

func TestLoad_ClampsWorkerConcurrency(t *testing.T) {
	t.Setenv("AI_PROVIDER", "none")
	t.Setenv("WORKER_CONCURRENCY", "500")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.WorkerConcurrency)

	t.Setenv("WORKER_CONCURRENCY", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}
