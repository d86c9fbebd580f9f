package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/persistence"
)

// setupTestDB connects to TEST_DATABASE_URL, applies the migrations and
// empties both tables. Tests skip when no database is available.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("test database unreachable: %v", err)
	}

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `TRUNCATE tickets, banned_users`)
	require.NoError(t, err)
	return pool
}

func newTicket(openerID string) *domain.Ticket {
	return &domain.Ticket{
		ID:        uuid.NewString(),
		Type:      "Support",
		Status:    domain.TicketStatusOpen,
		OpenedBy:  domain.Identity{ID: openerID, DisplayName: "Alice"},
		Subject:   "Login broken",
		ChannelID: "chan-" + openerID,
	}
}

func TestTicketRepository_Postgres_Lifecycle(t *testing.T) {
	repo := NewTicketRepository(setupTestDB(t))
	ctx := context.Background()

	ticket := newTicket("u-1")
	require.NoError(t, repo.Create(ctx, ticket))
	assert.False(t, ticket.CreatedAt.IsZero())

	open, err := repo.FindOpenByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, open.ID)

	opener, err := repo.FindOpener(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{ID: "u-1", DisplayName: "Alice"}, *opener)

	require.NoError(t, repo.SetStatus(ctx, ticket.ID, domain.TicketStatusClosed, "s-1"))

	_, err = repo.FindOpenByUser(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNotFound)

	closed, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "s-1", *closed.ClosedBy)
	assert.NotNil(t, closed.ClosedAt)

	// CLOSED is terminal
	assert.ErrorIs(t, repo.SetStatus(ctx, ticket.ID, domain.TicketStatusClosed, "s-2"), ErrNotFound)
	again, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "s-1", *again.ClosedBy)

	assert.ErrorIs(t, repo.SetStatus(ctx, uuid.NewString(), domain.TicketStatusClosed, "s-1"), ErrNotFound)
	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepository_Postgres_OneOpenTicketPerUser(t *testing.T) {
	repo := NewTicketRepository(setupTestDB(t))
	ctx := context.Background()

	first := newTicket("u-1")
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newTicket("u-1")), ErrDuplicate)
	require.NoError(t, repo.Create(ctx, newTicket("u-2")))

	openTickets, err := repo.ListOpen(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, openTickets, 2)

	require.NoError(t, repo.SetStatus(ctx, first.ID, domain.TicketStatusClosed, "s-1"))
	require.NoError(t, repo.Create(ctx, newTicket("u-1")))

	openTickets, err = repo.ListOpen(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, openTickets, 2)
	for _, ticket := range openTickets {
		assert.NotEqual(t, first.ID, ticket.ID)
	}
}

func TestBanRepository_Postgres(t *testing.T) {
	repo := NewBanRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNotFound)

	ban := &domain.BanRecord{UserID: "u-1", Reason: "spam", BannedBy: "s-1"}
	require.NoError(t, repo.Create(ctx, ban))
	assert.False(t, ban.BannedAt.IsZero())
	assert.ErrorIs(t, repo.Create(ctx, &domain.BanRecord{UserID: "u-1", Reason: "again", BannedBy: "s-2"}), ErrDuplicate)

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "spam", got.Reason)

	removed, err := repo.Delete(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, removed)
}
