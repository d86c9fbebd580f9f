package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// DefaultBanReason is stored when a moderator gives no reason.
const DefaultBanReason = "No reason provided"

// ModerationService manages the ticket ban list.
type ModerationService struct {
	bans       repository.BanRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ModerationDependencies bundles collaborators for the moderation service.
type ModerationDependencies struct {
	BanRepo    repository.BanRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewModerationService constructs the service.
func NewModerationService(deps ModerationDependencies) *ModerationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{
		bans:       deps.BanRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// BanUser blocks target from opening tickets.
func (m *ModerationService) BanUser(ctx context.Context, actor domain.Actor, target domain.Identity, reason string) (*domain.BanRecord, error) {
	if !actor.CanBan {
		return nil, m.reject("ban_user", apperrors.NewPermissionDenied("You do not have permission to use this command."))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBanReason
	}

	_, err := m.bans.Get(ctx, target.ID)
	switch {
	case err == nil:
		return nil, m.reject("ban_user", alreadyBanned(target))
	case !errors.Is(err, repository.ErrNotFound):
		return nil, m.reject("ban_user", storeError(err))
	}

	ban := &domain.BanRecord{UserID: target.ID, Reason: reason, BannedBy: actor.ID}
	if err := m.bans.Create(ctx, ban); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, m.reject("ban_user", alreadyBanned(target))
		}
		m.logger.Error("ban user failed", zap.String("user_id", target.ID), zap.Error(err))
		return nil, m.reject("ban_user", storeError(err))
	}

	ev := events.New(events.EventBanUser, actor.Identity)
	ev.Target = &target
	ev.Reason = reason
	m.publish(ctx, ev)
	m.metrics.ModerationAction("ban")
	m.logger.Info("user banned", zap.String("user_id", target.ID), zap.String("banned_by", actor.ID))
	return ban, nil
}

// UnbanUser lifts a ban.
func (m *ModerationService) UnbanUser(ctx context.Context, actor domain.Actor, target domain.Identity) error {
	if !actor.CanBan {
		return m.reject("unban_user", apperrors.NewPermissionDenied("You do not have permission to use this command."))
	}
	removed, err := m.bans.Delete(ctx, target.ID)
	if err != nil {
		m.logger.Error("unban user failed", zap.String("user_id", target.ID), zap.Error(err))
		return m.reject("unban_user", storeError(err))
	}
	if !removed {
		return m.reject("unban_user", apperrors.NewNotFound("ban record", map[string]any{"user_id": target.ID}))
	}

	ev := events.New(events.EventUnbanUser, actor.Identity)
	ev.Target = &target
	m.publish(ctx, ev)
	m.metrics.ModerationAction("unban")
	m.logger.Info("user unbanned", zap.String("user_id", target.ID), zap.String("unbanned_by", actor.ID))
	return nil
}

// BanStatus returns the ban record for userID, or NOT_FOUND when the user is not banned.
func (m *ModerationService) BanStatus(ctx context.Context, userID string) (*domain.BanRecord, error) {
	ban, err := m.bans.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ban record", map[string]any{"user_id": userID})
	}
	if err != nil {
		return nil, storeError(err)
	}
	return ban, nil
}

func (m *ModerationService) reject(operation string, err error) error {
	m.metrics.Rejected(operation, apperrors.ToDomainError(err).Code)
	return err
}

func (m *ModerationService) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Publish(ctx, event)
}

func alreadyBanned(target domain.Identity) error {
	return apperrors.NewConflict("User is already banned.", map[string]any{"user_id": target.ID})
}
