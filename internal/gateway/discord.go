package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

const (
	visibleMemberPerms = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
)

// DiscordGateway implements Gateway on a discordgo session.
type DiscordGateway struct {
	session *discordgo.Session
}

// NewDiscordGateway wraps an opened session.
func NewDiscordGateway(session *discordgo.Session) *DiscordGateway {
	return &DiscordGateway{session: session}
}

func (g *DiscordGateway) SelfID() string {
	if g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

func (g *DiscordGateway) Channel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	ch, err := g.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return g.channelInfo(ch), nil
}

func (g *DiscordGateway) CreateChannel(ctx context.Context, in CreateChannelInput) (*ChannelInfo, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(in.Overrides))
	for _, o := range in.Overrides {
		ow := &discordgo.PermissionOverwrite{ID: o.ID, Type: discordgo.PermissionOverwriteTypeRole}
		if o.Kind == OverrideMember {
			ow.Type = discordgo.PermissionOverwriteTypeMember
		}
		if o.Allow {
			ow.Allow = visibleMemberPerms
		} else {
			ow.Deny = discordgo.PermissionViewChannel
		}
		overwrites = append(overwrites, ow)
	}
	ch, err := g.session.GuildChannelCreateComplex(in.GuildID, discordgo.GuildChannelCreateData{
		Name:                 in.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                in.Topic,
		ParentID:             in.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return g.channelInfo(ch), nil
}

func (g *DiscordGateway) SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (string, error) {
	sent, err := g.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return sent.ID, nil
}

func (g *DiscordGateway) Message(ctx context.Context, channelID, messageID string) (*domain.Message, error) {
	m, err := g.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := toDomainMessage(m)
	return &out, nil
}

func (g *DiscordGateway) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]domain.Message, error) {
	msgs, err := g.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toDomainMessage(m))
	}
	return out, nil
}

func (g *DiscordGateway) SetVisibility(ctx context.Context, channelID, memberID string, visible bool) error {
	var allow, deny int64
	if visible {
		allow = visibleMemberPerms
	} else {
		deny = discordgo.PermissionViewChannel
	}
	err := g.session.ChannelPermissionSet(channelID, memberID, discordgo.PermissionOverwriteTypeMember, allow, deny, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *DiscordGateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *DiscordGateway) User(ctx context.Context, userID string) (*domain.Identity, error) {
	u, err := g.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	identity := IdentityOf(u)
	return &identity, nil
}

func (g *DiscordGateway) SendDirect(ctx context.Context, userID string, msg OutgoingMessage) (string, error) {
	dm, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return g.SendMessage(ctx, dm.ID, msg)
}

// RegisterCommands replaces the bot's commands in guildID, or globally when guildID is empty.
func (g *DiscordGateway) RegisterCommands(ctx context.Context, guildID string, commands []CommandSpec) error {
	appID := g.SelfID()
	if appID == "" {
		return fmt.Errorf("register commands: session not ready")
	}
	specs := make([]*discordgo.ApplicationCommand, 0, len(commands))
	for _, c := range commands {
		specs = append(specs, toApplicationCommand(c))
	}
	_, err := g.session.ApplicationCommandBulkOverwrite(appID, guildID, specs, discordgo.WithContext(ctx))
	return mapError(err)
}

func (g *DiscordGateway) channelInfo(ch *discordgo.Channel) *ChannelInfo {
	info := &ChannelInfo{
		ID:       ch.ID,
		Name:     ch.Name,
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
		GuildID:  ch.GuildID,
	}
	if g.session.State != nil && ch.GuildID != "" {
		if guild, err := g.session.State.Guild(ch.GuildID); err == nil {
			info.GuildName = guild.Name
		}
	}
	return info
}

// IdentityOf converts a platform user into the identity stored on tickets.
func IdentityOf(u *discordgo.User) domain.Identity {
	if u == nil {
		return domain.Identity{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return domain.Identity{ID: u.ID, DisplayName: name}
}

func toDomainMessage(m *discordgo.Message) domain.Message {
	out := domain.Message{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		out.Author = IdentityOf(m.Author)
		out.AvatarURL = m.Author.AvatarURL("64")
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, domain.Attachment{Name: a.Filename, URL: a.URL})
	}
	for _, e := range m.Embeds {
		out.EmbedTitles = append(out.EmbedTitles, e.Title)
	}
	out.ComponentIDs = componentIDs(m.Components)
	return out
}

func componentIDs(components []discordgo.MessageComponent) []string {
	var ids []string
	for _, c := range components {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			ids = append(ids, componentIDs(v.Components)...)
		case discordgo.ActionsRow:
			ids = append(ids, componentIDs(v.Components)...)
		case *discordgo.Button:
			ids = append(ids, v.CustomID)
		case discordgo.Button:
			ids = append(ids, v.CustomID)
		}
	}
	return ids
}

// maxButtonsPerRow is the platform limit for one action row.
const maxButtonsPerRow = 5

func toMessageSend(msg OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg.Embeds),
	}
	var row discordgo.ActionsRow
	for _, b := range msg.Components {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: b.CustomID,
			Label:    buttonLabel(b),
			Style:    buttonStyle(b.Style),
		})
		if len(row.Components) == maxButtonsPerRow {
			send.Components = append(send.Components, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		send.Components = append(send.Components, row)
	}
	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return send
}

func buttonLabel(b Button) string {
	if b.Emoji == "" {
		return b.Label
	}
	return b.Emoji + " " + b.Label
}

func buttonStyle(s ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case ButtonSecondary:
		return discordgo.SecondaryButton
	case ButtonSuccess:
		return discordgo.SuccessButton
	case ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

func toEmbeds(embeds []Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if e.Thumbnail != "" {
			me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
		}
		if e.Image != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.Image}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, me)
	}
	return out
}

func toApplicationCommand(c CommandSpec) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        c.Name,
		Description: c.Description,
		Options:     toCommandOptions(c.Options),
	}
	if c.Permissions != 0 {
		perms := c.Permissions
		cmd.DefaultMemberPermissions = &perms
	}
	return cmd
}

func toCommandOptions(opts []CommandOption) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, o := range opts {
		opt := &discordgo.ApplicationCommandOption{
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
			Options:     toCommandOptions(o.Options),
		}
		switch o.Type {
		case OptionSubcommand:
			opt.Type = discordgo.ApplicationCommandOptionSubCommand
		case OptionUser:
			opt.Type = discordgo.ApplicationCommandOptionUser
		default:
			opt.Type = discordgo.ApplicationCommandOptionString
		}
		out = append(out, opt)
	}
	return out
}

// mapError turns REST failures into gateway sentinels or EXTERNAL_SERVICE_ERROR for 5xx.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return err
	}
	switch status := restErr.Response.StatusCode; {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case status >= http.StatusInternalServerError:
		return apperrors.NewExternalServiceError(err)
	default:
		return err
	}
}

// IsServerError reports whether err is a 5xx from the platform.
func IsServerError(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeExternalService)
}
