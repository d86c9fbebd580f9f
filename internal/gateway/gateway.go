package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

var (
	// ErrNotFound is returned when the channel, message or user does not exist.
	ErrNotFound = errors.New("gateway: not found")
	// ErrForbidden is returned when the bot lacks access, e.g. closed DMs.
	ErrForbidden = errors.New("gateway: forbidden")
)

// Gateway is the subset of the chat platform the ticket system relies on.
type Gateway interface {
	Channel(ctx context.Context, channelID string) (*ChannelInfo, error)
	CreateChannel(ctx context.Context, in CreateChannelInput) (*ChannelInfo, error)
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (string, error)
	Message(ctx context.Context, channelID, messageID string) (*domain.Message, error)
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]domain.Message, error)
	SetVisibility(ctx context.Context, channelID, memberID string, visible bool) error
	DeleteChannel(ctx context.Context, channelID string) error
	User(ctx context.Context, userID string) (*domain.Identity, error)
	SendDirect(ctx context.Context, userID string, msg OutgoingMessage) (string, error)
	RegisterCommands(ctx context.Context, guildID string, commands []CommandSpec) error
	SelfID() string
}

// ChannelInfo describes a guild channel.
type ChannelInfo struct {
	ID        string
	Name      string
	Topic     string
	ParentID  string
	GuildID   string
	GuildName string
}

// OverrideKind tells whether an override targets a role or a member.
type OverrideKind int

const (
	OverrideRole OverrideKind = iota
	OverrideMember
)

// Override grants or denies channel visibility to one role or member.
type Override struct {
	ID    string
	Kind  OverrideKind
	Allow bool
}

// CreateChannelInput describes a private text channel to create.
type CreateChannelInput struct {
	GuildID   string
	Name      string
	ParentID  string
	Topic     string
	Overrides []Override
}

// OutgoingMessage is a message the bot posts.
type OutgoingMessage struct {
	Content    string
	Embeds     []Embed
	Components []Button
	Files      []File
}

// Embed is a rich card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Thumbnail   string
	Image       string
	Timestamp   time.Time
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle mirrors the platform's button colours.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable component carrying a custom id.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Style    ButtonStyle
}

// File is an attachment uploaded with a message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Modal is a form shown in response to an interaction.
type Modal struct {
	CustomID string
	Title    string
	Fields   []ModalField
}

// ModalField is one text input of a modal.
type ModalField struct {
	CustomID    string
	Label       string
	Placeholder string
	Paragraph   bool
	Required    bool
	MaxLength   int
}

// Reply is an interaction response; ephemeral replies are only shown to the caller.
type Reply struct {
	Content   string
	Embeds    []Embed
	Ephemeral bool
}

// OptionType enumerates slash command option kinds.
type OptionType int

const (
	OptionSubcommand OptionType = iota + 1
	OptionString
	OptionUser
)

// CommandSpec declares a slash command.
type CommandSpec struct {
	Name        string
	Description string
	// Permissions restricts default visibility to members holding these permission bits.
	Permissions int64
	Options     []CommandOption
}

// CommandOption is an argument or subcommand of a slash command.
type CommandOption struct {
	Type        OptionType
	Name        string
	Description string
	Required    bool
	Options     []CommandOption
}
