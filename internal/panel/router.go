package panel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/ratelimit"
	"github.com/laggis/Discord-Ticket-bot/internal/service"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// Responder answers the interaction an Event came from.
type Responder interface {
	Defer(ctx context.Context) error
	Reply(ctx context.Context, reply gateway.Reply) error
	ShowModal(ctx context.Context, modal gateway.Modal) error
}

// TicketOperations is the part of the ticket service the router drives.
type TicketOperations interface {
	CheckEligibility(ctx context.Context, actor domain.Actor) error
	OpenTicket(ctx context.Context, input service.OpenTicketInput) (*service.OpenResult, error)
	CloseTicket(ctx context.Context, input service.CloseTicketInput) (*service.CloseReport, error)
}

// ModerationOperations is the part of the moderation service the router drives.
type ModerationOperations interface {
	BanUser(ctx context.Context, actor domain.Actor, target domain.Identity, reason string) (*domain.BanRecord, error)
	UnbanUser(ctx context.Context, actor domain.Actor, target domain.Identity) error
}

// Router dispatches inbound events to the services and answers each one.
type Router struct {
	tickets     TicketOperations
	moderation  ModerationOperations
	limiter     ratelimit.Limiter
	staffWindow time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Tickets              TicketOperations
	Moderation           ModerationOperations
	Limiter              ratelimit.Limiter
	StaffCommandCooldown time.Duration
	Metrics              *observability.Metrics
	Logger               *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		tickets:     deps.Tickets,
		moderation:  deps.Moderation,
		limiter:     deps.Limiter,
		staffWindow: deps.StaffCommandCooldown,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// Handle processes one event. Rejections are answered with a single private
// reply; only failures to respond are returned.
func (r *Router) Handle(ctx context.Context, ev Event, resp Responder) error {
	if ev == nil {
		return fmt.Errorf("panel: nil event")
	}
	r.logger.Debug("handling interaction",
		zap.String("event", fmt.Sprintf("%T", ev)),
		zap.String("actor_id", ev.actor().ID))

	switch e := ev.(type) {
	case CategorySelected:
		return r.categorySelected(ctx, e, resp)
	case TicketFormSubmitted:
		return r.formSubmitted(ctx, e, resp)
	case CloseRequested:
		return r.close(ctx, e.Actor, e.TicketID, e.ChannelID, resp)
	case CloseCommand:
		return r.close(ctx, e.Actor, e.TicketID, e.ChannelID, resp)
	case BanCommand:
		return r.ban(ctx, e, resp)
	case UnbanCommand:
		return r.unban(ctx, e, resp)
	default:
		return fmt.Errorf("panel: unhandled event %T", ev)
	}
}

func (r *Router) categorySelected(ctx context.Context, e CategorySelected, resp Responder) error {
	if err := r.tickets.CheckEligibility(ctx, e.Actor); err != nil {
		return r.replyError(ctx, resp, "check ticket eligibility", err)
	}
	return resp.ShowModal(ctx, TicketModal(e.Category))
}

func (r *Router) formSubmitted(ctx context.Context, e TicketFormSubmitted, resp Responder) error {
	if err := resp.Defer(ctx); err != nil {
		return err
	}
	res, err := r.tickets.OpenTicket(ctx, service.OpenTicketInput{
		Actor:       e.Actor,
		Type:        e.Category,
		Subject:     e.Subject,
		Description: e.Description,
	})
	if err != nil {
		return r.replyError(ctx, resp, "create ticket", err)
	}
	if len(res.Warnings) > 0 {
		r.logger.Warn("ticket opened with warnings",
			zap.String("ticket_id", res.Ticket.ID),
			zap.Strings("warnings", res.Warnings))
	}
	return resp.Reply(ctx, gateway.Reply{
		Content:   fmt.Sprintf("Your %s ticket has been created: <#%s>", res.Ticket.Type, res.ChannelID),
		Ephemeral: true,
	})
}

func (r *Router) close(ctx context.Context, actor domain.Actor, ticketID, channelID string, resp Responder) error {
	if err := resp.Defer(ctx); err != nil {
		return err
	}
	if ticketID == "" {
		return r.replyError(ctx, resp, "close ticket", apperrors.NewValidationError("A ticket id is required.", nil))
	}
	report, err := r.tickets.CloseTicket(ctx, service.CloseTicketInput{Actor: actor, TicketID: ticketID, ChannelID: channelID})
	if err != nil {
		return r.replyError(ctx, resp, "close ticket", err)
	}
	content := fmt.Sprintf("Ticket %s closed.", ticketID)
	if failed := report.Failed(); len(failed) > 0 {
		content += " Some steps did not complete: " + strings.Join(failed, ", ") + "."
	}
	return resp.Reply(ctx, gateway.Reply{Content: content, Ephemeral: true})
}

func (r *Router) ban(ctx context.Context, e BanCommand, resp Responder) error {
	if err := r.checkStaffCommand(ctx, e.Actor); err != nil {
		return r.replyError(ctx, resp, "ban user", err)
	}
	ban, err := r.moderation.BanUser(ctx, e.Actor, e.Target, e.Reason)
	if err != nil {
		return r.replyError(ctx, resp, "ban user", err)
	}
	return resp.Reply(ctx, gateway.Reply{
		Content:   fmt.Sprintf("%s has been banned: %s", e.Target.Label(), ban.Reason),
		Ephemeral: true,
	})
}

func (r *Router) unban(ctx context.Context, e UnbanCommand, resp Responder) error {
	if err := r.checkStaffCommand(ctx, e.Actor); err != nil {
		return r.replyError(ctx, resp, "unban user", err)
	}
	if err := r.moderation.UnbanUser(ctx, e.Actor, e.Target); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return r.reply(ctx, resp, "That user is not on the ban list.")
		}
		return r.replyError(ctx, resp, "unban user", err)
	}
	return resp.Reply(ctx, gateway.Reply{
		Content:   fmt.Sprintf("%s has been unbanned.", e.Target.Label()),
		Ephemeral: true,
	})
}

// checkStaffCommand enforces the ban capability and the staff command cooldown.
func (r *Router) checkStaffCommand(ctx context.Context, actor domain.Actor) error {
	if !actor.CanBan {
		r.metrics.Rejected("staff_command", apperrors.CodePermission)
		return apperrors.NewPermissionDenied("You do not have permission to use this command.")
	}
	key := ratelimit.Key(ratelimit.ActionStaffCommand, actor.ID)
	if r.limiter.IsThrottled(ctx, key, r.staffWindow) {
		r.metrics.Rejected("staff_command", apperrors.CodeRateLimited)
		remaining := r.limiter.Remaining(ctx, key, r.staffWindow)
		return apperrors.NewRateLimited(fmt.Sprintf("Please wait %ds before using moderation commands.", remaining), remaining)
	}
	r.limiter.Mark(ctx, key)
	return nil
}

func (r *Router) replyError(ctx context.Context, resp Responder, action string, err error) error {
	return r.reply(ctx, resp, UserMessage(action, err))
}

func (r *Router) reply(ctx context.Context, resp Responder, content string) error {
	return resp.Reply(ctx, gateway.Reply{Content: content, Ephemeral: true})
}

// UserMessage renders err as the single human-readable reason shown to the caller.
// Infrastructure failures are not described beyond a generic retry hint.
func UserMessage(action string, err error) string {
	domainErr := apperrors.ToDomainError(err)
	switch domainErr.Code {
	case apperrors.CodeStore, apperrors.CodeExternalService, apperrors.CodeInternal:
		return fmt.Sprintf("Failed to %s. Please try again later.", action)
	case apperrors.CodeNotFound, apperrors.CodeAlreadyClosed:
		return capitalize(domainErr.Message) + "."
	default:
		return domainErr.Message
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TicketModal is the form shown after a category is chosen.
func TicketModal(category string) gateway.Modal {
	return gateway.Modal{
		CustomID: TicketModalID(category),
		Title:    "Create ticket",
		Fields: []gateway.ModalField{
			{CustomID: FieldSubject, Label: "Subject", Required: true, MaxLength: 100},
			{CustomID: FieldDescription, Label: "Description", Paragraph: true, Required: true, MaxLength: 1000},
		},
	}
}
