package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laggis/Discord-Ticket-bot/internal/auth"
)

func TestRun_MintsToken(t *testing.T) {
	t.Setenv("TICKET_CATEGORIES_FILE", "")
	var stdout, stderr bytes.Buffer

	err := run([]string{"token", "--subject", "s-1", "--name", "Sam", "--roles", "r-1,r-2", "--ban", "--secret", "s3cret"}, &stdout, &stderr)
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", 60).ParseToken(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	actor := claims.Actor()
	assert.Equal(t, "s-1", actor.ID)
	assert.Equal(t, "Sam", actor.DisplayName)
	assert.Equal(t, []string{"r-1", "r-2"}, actor.RoleIDs)
	assert.True(t, actor.CanBan)
	assert.Contains(t, stderr.String(), "expires")
}

func TestRun_RequiresSubject(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run([]string{"token"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run([]string{"whoami"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage")
}
