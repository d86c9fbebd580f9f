package domain

import "time"

// BanRecord blocks a user from opening tickets while it exists.
type BanRecord struct {
	UserID   string
	Reason   string
	BannedBy string
	BannedAt time.Time
}
