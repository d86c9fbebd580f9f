package domain

import "time"

// PanelRef records which message currently hosts the category-selection panel.
type PanelRef struct {
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	PostedAt  time.Time `json:"posted_at"`
}

// Category maps a ticket type to the channel group tickets are created under.
type Category struct {
	Name        string `yaml:"name"`
	ParentID    string `yaml:"parent_id"`
	Description string `yaml:"description"`
	Emoji       string `yaml:"emoji"`
}
