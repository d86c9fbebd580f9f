package ratelimit

import (
	"context"
	"math"
	"time"
)

// Action names the operation a cooldown applies to.
type Action string

const (
	ActionTicketCreate Action = "ticket_create"
	ActionTicketClose  Action = "ticket_close"
	ActionStaffCommand Action = "staff_cmd"
)

// Limiter tracks the last time an actor triggered an action.
type Limiter interface {
	// IsThrottled reports whether key was marked less than window ago. It has no side effects.
	IsThrottled(ctx context.Context, key string, window time.Duration) bool
	// Mark records now as the last trigger time for key.
	Mark(ctx context.Context, key string)
	// Remaining returns the whole seconds left in the window, rounded up.
	Remaining(ctx context.Context, key string, window time.Duration) int
}

// Key builds the cooldown key for an actor and action.
func Key(action Action, actorID string) string {
	return string(action) + ":" + actorID
}

func remainingSeconds(last, now time.Time, window time.Duration) int {
	left := window - now.Sub(last)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
