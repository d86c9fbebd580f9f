package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bot's prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	ticketsOpened      *prometheus.CounterVec
	ticketsClosed      prometheus.Counter
	rejections         *prometheus.CounterVec
	closeStepFailures  *prometheus.CounterVec
	moderationActions  *prometheus.CounterVec
	storeInconsistency prometheus.Counter
	reconciled         prometheus.Counter
	httpRequests       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticketsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_tickets_opened_total",
			Help: "Tickets opened, by category.",
		}, []string{"category"}),
		ticketsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketbot_tickets_closed_total",
			Help: "Tickets closed.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_rejections_total",
			Help: "Rejected ticket and moderation actions, by operation and error code.",
		}, []string{"operation", "code"}),
		closeStepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_close_step_failures_total",
			Help: "Failed best-effort close steps, by step.",
		}, []string{"step"}),
		moderationActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_moderation_actions_total",
			Help: "Moderation actions performed, by action.",
		}, []string{"action"}),
		storeInconsistency: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketbot_store_inconsistencies_total",
			Help: "Ticket channels created whose ticket row could not be persisted.",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketbot_reconciled_tickets_total",
			Help: "Open tickets closed by the reconciler because their channel was gone.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketbot_http_requests_total",
			Help: "Ops HTTP requests, by route, method and status.",
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(
		m.ticketsOpened,
		m.ticketsClosed,
		m.rejections,
		m.closeStepFailures,
		m.moderationActions,
		m.storeInconsistency,
		m.reconciled,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) TicketOpened(category string) {
	if m == nil {
		return
	}
	m.ticketsOpened.WithLabelValues(category).Inc()
}

func (m *Metrics) TicketClosed() {
	if m == nil {
		return
	}
	m.ticketsClosed.Inc()
}

func (m *Metrics) Rejected(operation, code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) CloseStepFailed(step string) {
	if m == nil {
		return
	}
	m.closeStepFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) ModerationAction(action string) {
	if m == nil {
		return
	}
	m.moderationActions.WithLabelValues(action).Inc()
}

func (m *Metrics) StoreInconsistency() {
	if m == nil {
		return
	}
	m.storeInconsistency.Inc()
}

func (m *Metrics) Reconciled() {
	if m == nil {
		return
	}
	m.reconciled.Inc()
}

// RecordRequest increments counters for ops HTTP requests.
func (m *Metrics) RecordRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
