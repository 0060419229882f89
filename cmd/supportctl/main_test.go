package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/db"
	"github.com/suPer8Hu/support-desk/internal/escalation"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--id", "7", "--username", "alice", "--role", "staff", "--secret", "s3cret", "--ttl", "1h")
	require.NoError(t, err)

	id, err := auth.ParseJWT(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "7", id.ID)
	assert.Equal(t, "alice", id.Username)
	assert.True(t, id.IsStaff())
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	_, err := execute(t, "token", "--id", "7", "--role", "admin", "--secret", "s", "--ttl", "1h")
	assert.Error(t, err)
}

func TestEscalationsListAndAck(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "tickets.db")
	gdb, err := db.Connect(dsn)
	require.NoError(t, err)
	repo := escalation.NewRepo(gdb)
	require.NoError(t, repo.Migrate())

	tk, _, err := escalation.NewHandler(repo, zerolog.Nop()).Persist(context.Background(), chat.Escalation{
		ID:         "evt-1",
		CustomerID: "42",
		Message:    "I need a manager",
		Reason:     "escalation keyword",
		Rule:       chat.RuleEscalationKeyword,
		At:         time.Now(),
	})
	require.NoError(t, err)

	out, err := execute(t, "escalations", "list", "--dsn", dsn, "--status", "open")
	require.NoError(t, err)
	assert.Contains(t, out, tk.ID)
	assert.Contains(t, out, "escalation_keyword")

	out, err = execute(t, "escalations", "ack", tk.ID, "--dsn", dsn, "--by", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "acknowledged by bob")

	_, err = execute(t, "escalations", "ack", tk.ID, "--dsn", dsn)
	assert.ErrorIs(t, err, escalation.ErrAlreadyAcknowledged)
}
