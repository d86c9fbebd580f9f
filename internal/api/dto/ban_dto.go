package dto

import (
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// BanRequest payload.
type BanRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Reason      string `json:"reason"`
}

// BanResponse describes a ban record.
type BanResponse struct {
	UserID   string    `json:"user_id"`
	Reason   string    `json:"reason"`
	BannedBy string    `json:"banned_by"`
	BannedAt time.Time `json:"banned_at"`
}

// NewBanResponse maps the domain ban record.
func NewBanResponse(b *domain.BanRecord) BanResponse {
	return BanResponse{UserID: b.UserID, Reason: b.Reason, BannedBy: b.BannedBy, BannedAt: b.BannedAt}
}
