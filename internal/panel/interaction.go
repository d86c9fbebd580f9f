package panel

import (
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// ErrUnsupported is returned for interactions the ticket system does not own.
var ErrUnsupported = errors.New("panel: unsupported interaction")

// errOutsideGuild is shown when a command is used in a direct message.
var errOutsideGuild = apperrors.NewValidationError("Commands must be used in the server.", nil)

// ParseInteraction translates a platform interaction into an Event.
func ParseInteraction(i *discordgo.Interaction) (Event, error) {
	actor := actorOf(i)
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if ticketID, ok := ParseCloseButton(customID); ok {
			return CloseRequested{Actor: actor, TicketID: ticketID, ChannelID: i.ChannelID}, nil
		}
		if category, ok := ParseCategoryButton(customID); ok {
			return CategorySelected{Actor: actor, Category: category}, nil
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if category, ok := ParseTicketModal(data.CustomID); ok {
			values := textInputs(data.Components)
			return TicketFormSubmitted{
				Actor:       actor,
				Category:    category,
				Subject:     values[FieldSubject],
				Description: values[FieldDescription],
			}, nil
		}
	case discordgo.InteractionApplicationCommand:
		return parseCommand(i, actor)
	}
	return nil, ErrUnsupported
}

func parseCommand(i *discordgo.Interaction, actor domain.Actor) (Event, error) {
	data := i.ApplicationCommandData()
	if data.Name != CommandTicket && data.Name != CommandClose {
		return nil, ErrUnsupported
	}
	if i.GuildID == "" || i.Member == nil {
		return nil, errOutsideGuild
	}

	if data.Name == CommandClose {
		return CloseCommand{Actor: actor, TicketID: stringOption(data.Options, OptionTicketID), ChannelID: i.ChannelID}, nil
	}

	if len(data.Options) == 0 {
		return nil, ErrUnsupported
	}
	sub := data.Options[0]
	target := resolveUser(data.Resolved, stringOption(sub.Options, OptionUser))
	switch sub.Name {
	case SubcommandBan:
		return BanCommand{Actor: actor, Target: target, Reason: stringOption(sub.Options, OptionReason)}, nil
	case SubcommandUnban:
		return UnbanCommand{Actor: actor, Target: target}, nil
	}
	return nil, ErrUnsupported
}

func actorOf(i *discordgo.Interaction) domain.Actor {
	if i.Member == nil {
		return domain.Actor{Identity: gateway.IdentityOf(i.User)}
	}
	actor := domain.Actor{
		Identity: gateway.IdentityOf(i.Member.User),
		RoleIDs:  i.Member.Roles,
		CanBan: i.Member.Permissions&discordgo.PermissionBanMembers != 0 ||
			i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	if i.Member.Nick != "" {
		actor.DisplayName = i.Member.Nick
	}
	return actor
}

func textInputs(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	for _, c := range components {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			for k, val := range textInputs(v.Components) {
				values[k] = val
			}
		case discordgo.ActionsRow:
			for k, val := range textInputs(v.Components) {
				values[k] = val
			}
		case *discordgo.TextInput:
			values[v.CustomID] = strings.TrimSpace(v.Value)
		case discordgo.TextInput:
			values[v.CustomID] = strings.TrimSpace(v.Value)
		}
	}
	return values
}

func stringOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name != name {
			continue
		}
		if s, ok := o.Value.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func resolveUser(resolved *discordgo.ApplicationCommandInteractionDataResolved, userID string) domain.Identity {
	if resolved != nil {
		if u, ok := resolved.Users[userID]; ok {
			return gateway.IdentityOf(u)
		}
	}
	return domain.Identity{ID: userID}
}
