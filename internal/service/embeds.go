package service

import (
	"strconv"
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/transcript"
)

const (
	colorOpened = 0x0099ff
	colorClosed = 0xff4d4f
	colorModLog = 0xffcc00

	thumbnailURL = "https://i.imgur.com/gybi9X5.jpg"
)

// CloseButtonID is the custom id of the close button posted in a ticket channel.
func CloseButtonID(ticketID string) string {
	return "close_ticket_" + ticketID
}

func ticketOpenedMessage(ticket *domain.Ticket) gateway.OutgoingMessage {
	fields := []gateway.EmbedField{
		{Name: "Ticket Type", Value: ticket.Type, Inline: true},
		{Name: "Status", Value: string(ticket.Status), Inline: true},
		{Name: "Opened By", Value: ticket.OpenedBy.Mention(), Inline: true},
		{Name: "Ticket ID", Value: ticket.ID},
	}
	if ticket.Description != "" {
		fields = append(fields, gateway.EmbedField{Name: "Description", Value: ticket.Description})
	}
	fields = append(fields, gateway.EmbedField{
		Name:  "Important",
		Value: "Please explain the problem as clearly as you can. Tickets that do not describe a problem may be closed.",
	})
	return gateway.OutgoingMessage{
		Embeds: []gateway.Embed{{
			Title:       "Support Ticket Created",
			Description: "Thanks for contacting us! Your ticket has been created.",
			Color:       colorOpened,
			Thumbnail:   thumbnailURL,
			Fields:      fields,
			Footer:      "Use the button below to request that the ticket is closed.",
		}},
		Components: []gateway.Button{{
			CustomID: CloseButtonID(ticket.ID),
			Label:    "Close ticket",
			Style:    gateway.ButtonDanger,
		}},
	}
}

type closedSummary struct {
	Ticket   *domain.Ticket
	Opener   *domain.Identity
	ClosedBy domain.Identity
	Stats    transcript.Stats
	At       time.Time
}

func ticketClosedEmbed(s closedSummary) gateway.Embed {
	opener := "-"
	if s.Opener != nil {
		opener = s.Opener.Label()
	}
	return gateway.Embed{
		Title:       "Ticket Closed",
		Description: "This ticket has been closed. The transcript is attached as an HTML file.",
		Color:       colorClosed,
		Thumbnail:   thumbnailURL,
		Fields: []gateway.EmbedField{
			{Name: "Ticket ID", Value: s.Ticket.ID, Inline: true},
			{Name: "Type", Value: orDefault(s.Ticket.Type, "Unknown"), Inline: true},
			{Name: "Subject", Value: orDefault(s.Ticket.Subject, "-")},
			{Name: "Opened By", Value: opener, Inline: true},
			{Name: "Closed By", Value: orDefault(s.ClosedBy.Label(), "-"), Inline: true},
			{Name: "Messages", Value: strconv.Itoa(s.Stats.MessageCount), Inline: true},
			{Name: "Duration", Value: s.Stats.DurationLabel(), Inline: true},
		},
		Footer:    "Thank you for using our support system!",
		Timestamp: s.At,
	}
}

func modLogEmbed(e events.Event) gateway.Embed {
	embed := gateway.Embed{
		Title:     "Mod Log: " + string(e.Type),
		Color:     colorModLog,
		Timestamp: e.Timestamp,
	}
	if e.Actor.ID != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Actor", Value: e.Actor.Label(), Inline: true})
	}
	if e.Target != nil {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Target", Value: e.Target.Label(), Inline: true})
	}
	if e.ChannelID != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Channel", Value: "<#" + e.ChannelID + ">", Inline: true})
	}
	if e.TicketID != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Ticket ID", Value: e.TicketID, Inline: true})
	}
	if e.Reason != "" {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Reason", Value: e.Reason})
	}
	return embed
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
