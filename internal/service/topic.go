package service

import (
	"fmt"
	"strings"
)

// maxTopicLength is the platform limit for channel topics.
const maxTopicLength = 1024

// TopicInfo is the ticket metadata kept in a ticket channel's topic.
type TopicInfo struct {
	ID      string
	Type    string
	Subject string
}

// FormatTopic renders "ID: <id> | Type: <type> | Subject: <subject>".
func FormatTopic(info TopicInfo) string {
	topic := fmt.Sprintf("ID: %s | Type: %s | Subject: %s", info.ID, info.Type, info.Subject)
	if r := []rune(topic); len(r) > maxTopicLength {
		topic = string(r[:maxTopicLength])
	}
	return topic
}

// ParseTopic reads the metadata written by FormatTopic. It also accepts the
// Swedish labels (Typ, Ämne) used by channels created before the rename.
// The subject runs to the end of the topic and may itself contain "|".
func ParseTopic(topic string) TopicInfo {
	var info TopicInfo
	rest := topic
	for rest != "" {
		var part string
		part, rest, _ = strings.Cut(rest, "|")
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ID":
			info.ID = strings.TrimSpace(value)
		case "Type", "Typ":
			info.Type = strings.TrimSpace(value)
		case "Subject", "Ämne":
			if rest != "" {
				value += "|" + rest
			}
			info.Subject = strings.TrimSpace(value)
			return info
		}
	}
	return info
}
