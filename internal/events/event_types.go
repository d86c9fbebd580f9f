package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventBannedUserAttempt        EventType = "BannedUserAttempt"
	EventUnauthorizedCloseAttempt EventType = "UnauthorizedCloseAttempt"
	EventCloseTicket              EventType = "CloseTicket"
	EventBanUser                  EventType = "BanUser"
	EventUnbanUser                EventType = "UnbanUser"
)

// Event represents an auditable action emitted by services.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Actor     domain.Identity  `json:"actor"`
	Target    *domain.Identity `json:"target,omitempty"`
	TicketID  string           `json:"ticket_id,omitempty"`
	ChannelID string           `json:"channel_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, actor domain.Identity) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}
