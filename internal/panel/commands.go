package panel

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
)

const (
	CommandTicket   = "ticket"
	CommandClose    = "close"
	SubcommandBan   = "ban"
	SubcommandUnban = "unban"
	OptionUser      = "user"
	OptionReason    = "reason"
	OptionTicketID  = "ticket_id"
)

// Commands declares the slash commands the bot owns.
func Commands() []gateway.CommandSpec {
	return []gateway.CommandSpec{
		{
			Name:        CommandTicket,
			Description: "Moderate the ticket system",
			Permissions: discordgo.PermissionBanMembers,
			Options: []gateway.CommandOption{
				{
					Type:        gateway.OptionSubcommand,
					Name:        SubcommandBan,
					Description: "Ban a user from the ticket system",
					Options: []gateway.CommandOption{
						{Type: gateway.OptionUser, Name: OptionUser, Description: "User to ban", Required: true},
						{Type: gateway.OptionString, Name: OptionReason, Description: "Reason"},
					},
				},
				{
					Type:        gateway.OptionSubcommand,
					Name:        SubcommandUnban,
					Description: "Lift a ticket system ban",
					Options: []gateway.CommandOption{
						{Type: gateway.OptionUser, Name: OptionUser, Description: "User to unban", Required: true},
					},
				},
			},
		},
		{
			Name:        CommandClose,
			Description: "Close a ticket by id",
			Options: []gateway.CommandOption{
				{Type: gateway.OptionString, Name: OptionTicketID, Description: "Ticket ID", Required: true},
			},
		},
	}
}

// RegisterCommands installs the commands in guildID, falling back to global
// registration when no guild is configured or the guild cannot be used.
func RegisterCommands(ctx context.Context, gw gateway.Gateway, guildID string, logger *zap.Logger) error {
	if guildID != "" {
		err := gw.RegisterCommands(ctx, guildID, Commands())
		if err == nil {
			logger.Info("guild slash commands registered", zap.String("guild_id", guildID))
			return nil
		}
		logger.Warn("guild command registration failed, registering globally", zap.String("guild_id", guildID), zap.Error(err))
	}
	if err := gw.RegisterCommands(ctx, "", Commands()); err != nil {
		return err
	}
	logger.Info("global slash commands registered")
	return nil
}
