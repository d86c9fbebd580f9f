package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Type        string
	Status      TicketStatus
	OpenedBy    Identity
	Subject     string
	Description string
	ChannelID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
	ClosedBy    *string
}

// IsOpen reports whether the ticket still accepts a close.
func (t *Ticket) IsOpen() bool {
	return t != nil && t.Status == TicketStatusOpen
}
