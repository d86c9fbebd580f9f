package panel

import "github.com/laggis/Discord-Ticket-bot/internal/domain"

// Event is one inbound user action. The set of implementations is closed.
type Event interface {
	actor() domain.Actor
}

// CategorySelected is a press on a category button of the panel.
type CategorySelected struct {
	Actor    domain.Actor
	Category string
}

// TicketFormSubmitted carries the filled-in ticket form.
type TicketFormSubmitted struct {
	Actor       domain.Actor
	Category    string
	Subject     string
	Description string
}

// CloseRequested is a press on the close button inside a ticket channel.
type CloseRequested struct {
	Actor     domain.Actor
	TicketID  string
	ChannelID string
}

// CloseCommand is the /close command.
type CloseCommand struct {
	Actor     domain.Actor
	TicketID  string
	ChannelID string
}

// BanCommand is /ticket ban.
type BanCommand struct {
	Actor  domain.Actor
	Target domain.Identity
	Reason string
}

// UnbanCommand is /ticket unban.
type UnbanCommand struct {
	Actor  domain.Actor
	Target domain.Identity
}

func (e CategorySelected) actor() domain.Actor    { return e.Actor }
func (e TicketFormSubmitted) actor() domain.Actor { return e.Actor }
func (e CloseRequested) actor() domain.Actor      { return e.Actor }
func (e CloseCommand) actor() domain.Actor        { return e.Actor }
func (e BanCommand) actor() domain.Actor          { return e.Actor }
func (e UnbanCommand) actor() domain.Actor        { return e.Actor }
