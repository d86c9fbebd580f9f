package dto

import (
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/service"
)

// TicketResponse describes a stored ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Status      domain.TicketStatus `json:"status"`
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	ChannelID   string              `json:"channel_id"`
	OpenedBy    string              `json:"opened_by"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
	ClosedBy    *string             `json:"closed_by,omitempty"`
}

// CloseStep is the outcome of one close step.
type CloseStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CloseReportResponse summarizes a close performed through the admin API.
type CloseReportResponse struct {
	TicketID           string      `json:"ticket_id"`
	ChannelID          string      `json:"channel_id"`
	Steps              []CloseStep `json:"steps"`
	Degraded           bool        `json:"degraded"`
	DeleteAfterSeconds int         `json:"delete_after_seconds"`
}

// NewTicketResponse maps the domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Type:        t.Type,
		Status:      t.Status,
		Subject:     t.Subject,
		Description: t.Description,
		ChannelID:   t.ChannelID,
		OpenedBy:    t.OpenedBy.ID,
		CreatedAt:   t.CreatedAt,
		ClosedAt:    t.ClosedAt,
		ClosedBy:    t.ClosedBy,
	}
}

// NewCloseReportResponse maps a close report.
func NewCloseReportResponse(r *service.CloseReport) CloseReportResponse {
	steps := make([]CloseStep, 0, len(r.Steps))
	for _, s := range r.Steps {
		step := CloseStep{Name: s.Name, Status: string(s.Status)}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		steps = append(steps, step)
	}
	return CloseReportResponse{
		TicketID:           r.TicketID,
		ChannelID:          r.ChannelID,
		Steps:              steps,
		Degraded:           r.Degraded(),
		DeleteAfterSeconds: int(r.DeleteAfter.Seconds()),
	}
}
