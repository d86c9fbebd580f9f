package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/laggis/Discord-Ticket-bot/internal/api/dto"
	"github.com/laggis/Discord-Ticket-bot/internal/auth"
	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/service"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// AdminTickets is the ticket functionality exposed to operators.
type AdminTickets interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	CloseTicket(ctx context.Context, input service.CloseTicketInput) (*service.CloseReport, error)
}

// AdminModeration is the moderation functionality exposed to operators.
type AdminModeration interface {
	BanStatus(ctx context.Context, userID string) (*domain.BanRecord, error)
	BanUser(ctx context.Context, actor domain.Actor, target domain.Identity, reason string) (*domain.BanRecord, error)
	UnbanUser(ctx context.Context, actor domain.Actor, target domain.Identity) error
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	tickets    AdminTickets
	moderation AdminModeration
}

// NewAdminHandler constructs handler.
func NewAdminHandler(tickets AdminTickets, moderation AdminModeration) *AdminHandler {
	return &AdminHandler{tickets: tickets, moderation: moderation}
}

// GetTicket GET /admin/tickets/:id.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CloseTicket POST /admin/tickets/:id/close.
func (h *AdminHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	report, err := h.tickets.CloseTicket(c.UserContext(), service.CloseTicketInput{Actor: actor, TicketID: c.Params("id")})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCloseReportResponse(report)})
}

// GetBan GET /admin/bans/:user_id.
func (h *AdminHandler) GetBan(c *fiber.Ctx) error {
	ban, err := h.moderation.BanStatus(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBanResponse(ban)})
}

// CreateBan POST /admin/bans.
func (h *AdminHandler) CreateBan(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.BanRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	target := domain.Identity{ID: req.UserID, DisplayName: strings.TrimSpace(req.DisplayName)}
	ban, err := h.moderation.BanUser(c.UserContext(), actor, target, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewBanResponse(ban)})
}

// DeleteBan DELETE /admin/bans/:user_id.
func (h *AdminHandler) DeleteBan(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.moderation.UnbanUser(c.UserContext(), actor, domain.Identity{ID: c.Params("user_id")}); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}
