package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindOpenByUser(ctx context.Context, userID string) (*domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus, closedBy string) error
	FindOpener(ctx context.Context, id string) (*domain.Identity, error)
	ListOpen(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, type, status, opened_by_id, opened_by_name, subject, description,
               channel_id, closed_by_id, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, type, status, opened_by_id, opened_by_name, subject, description, channel_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Type,
		ticket.Status,
		ticket.OpenedBy.ID,
		ticket.OpenedBy.DisplayName,
		ticket.Subject,
		ticket.Description,
		ticket.ChannelID,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	return mapError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !isTicketID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) FindOpenByUser(ctx context.Context, userID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE opened_by_id=$1 AND status=$2 LIMIT 1`
	return r.fetchSingle(ctx, query, userID, domain.TicketStatusOpen)
}

// SetStatus only ever moves a ticket out of OPEN; a ticket that is unknown
// or already in the target status reports ErrNotFound.
func (r *ticketRepository) SetStatus(ctx context.Context, id string, status domain.TicketStatus, closedBy string) error {
	if !isTicketID(id) {
		return ErrNotFound
	}
	const query = `
        UPDATE tickets SET status=$1, closed_by_id=NULLIF($2, ''),
            closed_at=CASE WHEN $1 = 'CLOSED' THEN NOW() ELSE closed_at END,
            updated_at=NOW()
        WHERE id=$3 AND status='OPEN'`
	cmd, err := r.pool.Exec(ctx, query, status, closedBy, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) FindOpener(ctx context.Context, id string) (*domain.Identity, error) {
	if !isTicketID(id) {
		return nil, ErrNotFound
	}
	const query = `SELECT opened_by_id, opened_by_name FROM tickets WHERE id=$1`
	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, id).Scan(&identity.ID, &identity.DisplayName); err != nil {
		return nil, mapError(err)
	}
	return &identity, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusOpen, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// isTicketID reports whether id can name a row; ids are UUIDs and anything
// else typed by a user cannot match.
func isTicketID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Type,
		&ticket.Status,
		&ticket.OpenedBy.ID,
		&ticket.OpenedBy.DisplayName,
		&ticket.Subject,
		&ticket.Description,
		&ticket.ChannelID,
		&ticket.ClosedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
