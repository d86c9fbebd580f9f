package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/config"
	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/ratelimit"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
	"github.com/laggis/Discord-Ticket-bot/internal/transcript"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// TicketService coordinates the ticket lifecycle: NONE -> OPEN -> CLOSED.
type TicketService struct {
	tickets     repository.TicketRepository
	bans        repository.BanRepository
	gateway     gateway.Gateway
	limiter     ratelimit.Limiter
	transcripts *transcript.Builder
	dispatcher  events.Dispatcher
	scheduler   Scheduler
	metrics     *observability.Metrics
	logger      *zap.Logger
	discord     config.DiscordConfig
	cfg         config.TicketConfig
	now         func() time.Time

	mu      sync.Mutex
	closing map[string]struct{}
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	BanRepo     repository.BanRepository
	Gateway     gateway.Gateway
	Limiter     ratelimit.Limiter
	Transcripts *transcript.Builder
	Dispatcher  events.Dispatcher
	Scheduler   Scheduler
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Discord     config.DiscordConfig
	Tickets     config.TicketConfig
	Now         func() time.Time
}

// OpenTicketInput describes a ticket request submitted through the form.
type OpenTicketInput struct {
	Actor       domain.Actor
	Type        string
	Subject     string
	Description string
}

// OpenResult reports the created ticket. Warnings list non-fatal problems
// such as a failed welcome message.
type OpenResult struct {
	Ticket    *domain.Ticket
	ChannelID string
	Warnings  []string
}

// CloseTicketInput identifies the ticket to close. ChannelID is the channel
// the request came from, when known.
type CloseTicketInput struct {
	Actor     domain.Actor
	TicketID  string
	ChannelID string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	transcripts := deps.Transcripts
	if transcripts == nil {
		transcripts = transcript.NewBuilder(now)
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		bans:        deps.BanRepo,
		gateway:     deps.Gateway,
		limiter:     deps.Limiter,
		transcripts: transcripts,
		dispatcher:  deps.Dispatcher,
		scheduler:   scheduler,
		metrics:     deps.Metrics,
		logger:      logger,
		discord:     deps.Discord,
		cfg:         deps.Tickets,
		now:         now,
		closing:     make(map[string]struct{}),
	}
}

// CheckEligibility runs the ban, duplicate and cooldown checks without
// changing any state. It is used before the ticket form is shown.
func (s *TicketService) CheckEligibility(ctx context.Context, actor domain.Actor) error {
	if err := s.ensureNotBanned(ctx, actor); err != nil {
		return err
	}
	if err := s.ensureNoOpenTicket(ctx, actor.ID); err != nil {
		return err
	}
	return s.checkCreateCooldown(ctx, actor.ID)
}

// OpenTicket creates the private channel and the OPEN ticket record.
func (s *TicketService) OpenTicket(ctx context.Context, input OpenTicketInput) (*OpenResult, error) {
	actor := input.Actor
	if err := s.ensureNotBanned(ctx, actor); err != nil {
		return nil, s.reject("open_ticket", err)
	}
	if err := s.ensureNoOpenTicket(ctx, actor.ID); err != nil {
		return nil, s.reject("open_ticket", err)
	}
	if err := s.checkCreateCooldown(ctx, actor.ID); err != nil {
		return nil, s.reject("open_ticket", err)
	}

	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, s.reject("open_ticket", apperrors.NewValidationError("subject is required", nil))
	}

	category, ok := s.cfg.Categories.Lookup(input.Type)
	if !ok || category.ParentID == "" {
		return nil, s.reject("open_ticket", apperrors.NewNotFound(input.Type+" ticket category", map[string]any{"type": input.Type}))
	}
	parent, err := s.gateway.Channel(ctx, category.ParentID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, s.reject("open_ticket", apperrors.NewNotFound(input.Type+" ticket category", map[string]any{"type": input.Type}))
		}
		return nil, s.reject("open_ticket", gatewayError(err))
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Type:        category.Name,
		Status:      domain.TicketStatusOpen,
		OpenedBy:    actor.Identity,
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
	}
	logger := s.logger.With(zap.String("ticket_id", ticket.ID), zap.String("user_id", actor.ID))

	guildID := parent.GuildID
	if guildID == "" {
		guildID = s.discord.GuildID
	}
	overrides := []gateway.Override{
		{ID: guildID, Kind: gateway.OverrideRole, Allow: false},
		{ID: actor.ID, Kind: gateway.OverrideMember, Allow: true},
	}
	for _, roleID := range s.discord.StaffRoleIDs {
		overrides = append(overrides, gateway.Override{ID: roleID, Kind: gateway.OverrideRole, Allow: true})
	}
	channel, err := s.gateway.CreateChannel(ctx, gateway.CreateChannelInput{
		GuildID:   guildID,
		Name:      ChannelName(actor.Identity),
		ParentID:  category.ParentID,
		Topic:     FormatTopic(TopicInfo{ID: ticket.ID, Type: ticket.Type, Subject: ticket.Subject}),
		Overrides: overrides,
	})
	if err != nil {
		logger.Error("create ticket channel failed", zap.Error(err))
		return nil, s.reject("open_ticket", gatewayError(err))
	}
	ticket.ChannelID = channel.ID
	logger = logger.With(zap.String("channel_id", channel.ID))

	result := &OpenResult{Ticket: ticket, ChannelID: channel.ID}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Another request for the same user won the race.
			if delErr := s.gateway.DeleteChannel(ctx, channel.ID); delErr != nil {
				logger.Error("delete duplicate ticket channel failed", zap.Error(delErr))
			}
			return nil, s.reject("open_ticket", apperrors.NewConflict("You already have an open ticket. Please close it before opening a new one.", nil))
		}
		s.metrics.StoreInconsistency()
		logger.Error("ticket channel created but ticket record not saved", zap.Error(err))
		result.Warnings = append(result.Warnings, "ticket record could not be saved")
	}
	s.limiter.Mark(ctx, ratelimit.Key(ratelimit.ActionTicketCreate, actor.ID))

	if _, err := s.gateway.SendMessage(ctx, channel.ID, ticketOpenedMessage(ticket)); err != nil {
		logger.Warn("post ticket summary failed", zap.Error(err))
		result.Warnings = append(result.Warnings, "ticket summary could not be posted")
	}
	announcement := fmt.Sprintf("%s has opened a %s ticket.", actor.Mention(), ticket.Type)
	if _, err := s.gateway.SendMessage(ctx, channel.ID, gateway.OutgoingMessage{Content: announcement}); err != nil {
		logger.Warn("announce ticket failed", zap.Error(err))
		result.Warnings = append(result.Warnings, "opener announcement could not be posted")
	}
	if len(s.discord.StaffRoleIDs) > 0 {
		mentions := make([]string, 0, len(s.discord.StaffRoleIDs))
		for _, roleID := range s.discord.StaffRoleIDs {
			mentions = append(mentions, "<@&"+roleID+">")
		}
		content := strings.Join(mentions, " ") + " will assist you shortly."
		if _, err := s.gateway.SendMessage(ctx, channel.ID, gateway.OutgoingMessage{Content: content}); err != nil {
			logger.Warn("mention staff failed", zap.Error(err))
			result.Warnings = append(result.Warnings, "staff could not be notified")
		}
	}

	s.metrics.TicketOpened(ticket.Type)
	logger.Info("ticket opened", zap.String("type", ticket.Type))
	return result, nil
}

// CloseTicket archives the conversation and closes the ticket. Individual
// steps are best effort; their outcome is reported in the CloseReport.
func (s *TicketService) CloseTicket(ctx context.Context, input CloseTicketInput) (*CloseReport, error) {
	actor := input.Actor
	if !actor.HasAnyRole(s.discord.StaffRoleIDs) {
		ev := events.New(events.EventUnauthorizedCloseAttempt, actor.Identity)
		ev.TicketID = input.TicketID
		ev.ChannelID = input.ChannelID
		s.publish(ctx, ev)
		return nil, s.reject("close_ticket", apperrors.NewPermissionDenied("You do not have permission to close tickets."))
	}

	ticket, fromTopic, err := s.resolveTicket(ctx, input)
	if err != nil {
		return nil, s.reject("close_ticket", err)
	}
	if !ticket.IsOpen() || !s.beginClose(ticket.ID) {
		return nil, s.reject("close_ticket", apperrors.NewAlreadyClosed(ticket.ID))
	}
	started := false
	defer func() {
		if !started {
			s.endClose(ticket.ID)
		}
	}()

	key := ratelimit.Key(ratelimit.ActionTicketClose, actor.ID)
	if s.limiter.IsThrottled(ctx, key, s.cfg.CloseCooldown) {
		remaining := s.limiter.Remaining(ctx, key, s.cfg.CloseCooldown)
		return nil, s.reject("close_ticket", apperrors.NewRateLimited(fmt.Sprintf("Please wait %ds before closing tickets.", remaining), remaining))
	}

	channel, err := s.gateway.Channel(ctx, ticket.ChannelID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, s.reject("close_ticket", apperrors.NewNotFound("ticket channel", map[string]any{"ticket_id": ticket.ID}))
		}
		return nil, s.reject("close_ticket", gatewayError(err))
	}
	s.limiter.Mark(ctx, key)

	started = true
	report := s.runClose(ctx, &closeRun{
		ticket:    ticket,
		channel:   channel,
		actor:     actor,
		fromTopic: fromTopic,
	})

	ev := events.New(events.EventCloseTicket, actor.Identity)
	ev.TicketID = ticket.ID
	ev.ChannelID = channel.ID
	s.publish(ctx, ev)
	s.metrics.TicketClosed()
	s.logger.Info("ticket closed",
		zap.String("ticket_id", ticket.ID),
		zap.String("channel_id", channel.ID),
		zap.String("closed_by", actor.ID),
		zap.Strings("failed_steps", report.Failed()))
	return report, nil
}

// GetTicket returns the stored ticket record.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return ticket, nil
}

// resolveTicket loads the ticket record. When the record is missing but the
// request came from a ticket channel, the ticket is rebuilt from the topic.
func (s *TicketService) resolveTicket(ctx context.Context, input CloseTicketInput) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err == nil {
		return ticket, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, storeError(err)
	}
	notFound := apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
	if input.ChannelID == "" {
		return nil, false, notFound
	}
	channel, err := s.gateway.Channel(ctx, input.ChannelID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, false, notFound
		}
		return nil, false, gatewayError(err)
	}
	info := ParseTopic(channel.Topic)
	if info.ID == "" || info.ID != input.TicketID {
		return nil, false, notFound
	}
	s.logger.Warn("ticket record missing, closing from channel topic",
		zap.String("ticket_id", input.TicketID),
		zap.String("channel_id", channel.ID))
	return &domain.Ticket{
		ID:        info.ID,
		Type:      info.Type,
		Subject:   info.Subject,
		Status:    domain.TicketStatusOpen,
		ChannelID: channel.ID,
	}, true, nil
}

func (s *TicketService) beginClose(ticketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.closing[ticketID]; busy {
		return false
	}
	s.closing[ticketID] = struct{}{}
	return true
}

func (s *TicketService) endClose(ticketID string) {
	s.mu.Lock()
	delete(s.closing, ticketID)
	s.mu.Unlock()
}

func (s *TicketService) ensureNotBanned(ctx context.Context, actor domain.Actor) error {
	ban, err := s.bans.Get(ctx, actor.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error("ban lookup failed", zap.String("user_id", actor.ID), zap.Error(err))
		return storeError(err)
	}
	ev := events.New(events.EventBannedUserAttempt, actor.Identity)
	ev.Reason = ban.Reason
	s.publish(ctx, ev)
	return apperrors.NewPermissionDenied("You are banned from the ticket system. Reason: " + ban.Reason)
}

func (s *TicketService) ensureNoOpenTicket(ctx context.Context, userID string) error {
	existing, err := s.tickets.FindOpenByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error("open ticket lookup failed", zap.String("user_id", userID), zap.Error(err))
		return storeError(err)
	}
	return apperrors.NewConflict("You already have an open ticket. Please close it before opening a new one.",
		map[string]any{"ticket_id": existing.ID})
}

func (s *TicketService) checkCreateCooldown(ctx context.Context, userID string) error {
	key := ratelimit.Key(ratelimit.ActionTicketCreate, userID)
	if !s.limiter.IsThrottled(ctx, key, s.cfg.CreateCooldown) {
		return nil
	}
	remaining := s.limiter.Remaining(ctx, key, s.cfg.CreateCooldown)
	return apperrors.NewRateLimited(fmt.Sprintf("Please wait %ds before creating another ticket.", remaining), remaining)
}

func (s *TicketService) reject(operation string, err error) error {
	s.metrics.Rejected(operation, apperrors.ToDomainError(err).Code)
	return err
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, event)
}

// ChannelName derives the ticket channel name from the opener's display name.
func ChannelName(opener domain.Identity) string {
	name := strings.ToLower(strings.TrimSpace(opener.DisplayName))
	if name == "" {
		name = opener.ID
	}
	name = strings.Join(strings.Fields(name), "-")
	if r := []rune(name); len(r) > 90 {
		name = string(r[:90])
	}
	return "ticket-" + name
}
