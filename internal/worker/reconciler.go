package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
)

// reconcileBatch bounds how many open tickets one pass inspects.
const reconcileBatch = 100

// systemActor is recorded as the closer of reconciled tickets.
const systemActor = "system:reconciler"

// TicketStore is the part of the ticket repository the reconciler uses.
type TicketStore interface {
	ListOpen(ctx context.Context, limit int) ([]domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus, closedBy string) error
}

// ChannelLookup reports whether a ticket channel still exists.
type ChannelLookup interface {
	Channel(ctx context.Context, channelID string) (*gateway.ChannelInfo, error)
}

// Reconciler closes OPEN tickets whose channel has been removed out of band,
// e.g. deleted by hand or left behind by a close that failed to persist.
type Reconciler struct {
	tickets  TicketStore
	channels ChannelLookup
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReconciler constructs the worker. A non-positive interval disables Run.
func NewReconciler(tickets TicketStore, channels ChannelLookup, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{tickets: tickets, channels: channels, interval: interval, metrics: metrics, logger: logger}
}

// Run reconciles on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("ticket reconciler disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Warn("ticket reconciliation failed", zap.Error(err))
			}
		}
	}
}

// ReconcileOnce performs a single pass and returns how many tickets were closed.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	open, err := r.tickets.ListOpen(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, ticket := range open {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		if ticket.ChannelID == "" {
			continue
		}
		_, err := r.channels.Channel(ctx, ticket.ChannelID)
		if err == nil {
			continue
		}
		if !errors.Is(err, gateway.ErrNotFound) {
			r.logger.Debug("channel lookup failed during reconciliation",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}

		err = r.tickets.SetStatus(ctx, ticket.ID, domain.TicketStatusClosed, systemActor)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			continue
		case err != nil:
			r.logger.Error("close orphaned ticket failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		closed++
		r.metrics.Reconciled()
		r.logger.Info("closed ticket whose channel is gone",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel_id", ticket.ChannelID))
	}
	return closed, nil
}
