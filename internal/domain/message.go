package domain

import "time"

// Message is one chat message fetched from a ticket channel.
type Message struct {
	ID           string
	Author       Identity
	AvatarURL    string
	Content      string
	Timestamp    time.Time
	Attachments  []Attachment
	EmbedTitles  []string
	ComponentIDs []string
}

// Attachment references a file uploaded with a message.
type Attachment struct {
	Name string
	URL  string
}
