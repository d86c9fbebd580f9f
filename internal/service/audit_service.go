package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
)

// AuditService writes auditable events to the log and the mod-log channel.
type AuditService struct {
	dispatcher events.Dispatcher
	gateway    gateway.Gateway
	logger     *zap.Logger
	channelID  string
}

// NewAuditService creates the service. An empty channelID disables the mod-log channel.
func NewAuditService(dispatcher events.Dispatcher, gw gateway.Gateway, logger *zap.Logger, channelID string) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		gateway:    gw,
		logger:     logger,
		channelID:  channelID,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventBannedUserAttempt,
		events.EventUnauthorizedCloseAttempt,
		events.EventCloseTicket,
		events.EventBanUser,
		events.EventUnbanUser,
	} {
		a.dispatcher.Subscribe(t, a.handle)
	}
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("actor_id", event.Actor.ID),
	}
	if event.Target != nil {
		fields = append(fields, zap.String("target_id", event.Target.ID))
	}
	if event.TicketID != "" {
		fields = append(fields, zap.String("ticket_id", event.TicketID))
	}
	if event.ChannelID != "" {
		fields = append(fields, zap.String("channel_id", event.ChannelID))
	}
	a.logger.Info("audit", fields...)

	if a.channelID == "" || a.gateway == nil {
		return nil
	}
	_, err := a.gateway.SendMessage(ctx, a.channelID, gateway.OutgoingMessage{
		Embeds: []gateway.Embed{modLogEmbed(event)},
	})
	return err
}
