package panel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
)

const (
	// PanelTitle identifies the panel message when scanning channel history.
	PanelTitle = "Ticket System"
	panelColor = 0x00ff00

	panelScanDepth = 20
)

// PanelState is where the current panel reference is kept between restarts.
type PanelState interface {
	Get(ctx context.Context, channelID string) (*domain.PanelRef, error)
	Put(ctx context.Context, ref domain.PanelRef) error
}

// PanelPublisher keeps exactly one category panel in the panel channel.
type PanelPublisher struct {
	gateway    gateway.Gateway
	state      PanelState
	channelID  string
	categories []domain.Category
	logger     *zap.Logger
	now        func() time.Time
}

// NewPanelPublisher constructs a publisher for channelID.
func NewPanelPublisher(gw gateway.Gateway, state PanelState, channelID string, categories []domain.Category, logger *zap.Logger) *PanelPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PanelPublisher{
		gateway:    gw,
		state:      state,
		channelID:  channelID,
		categories: categories,
		logger:     logger,
		now:        time.Now,
	}
}

// Ensure returns the panel in the channel, posting it only when no existing
// one can be found.
func (p *PanelPublisher) Ensure(ctx context.Context) (*domain.PanelRef, error) {
	if p.channelID == "" {
		return nil, errors.New("panel: channel not configured")
	}

	ref, err := p.state.Get(ctx, p.channelID)
	if err != nil {
		p.logger.Warn("read panel state failed", zap.Error(err))
	}
	if ref != nil {
		_, err := p.gateway.Message(ctx, p.channelID, ref.MessageID)
		switch {
		case err == nil:
			p.logger.Info("panel already present", zap.String("message_id", ref.MessageID))
			return ref, nil
		case !errors.Is(err, gateway.ErrNotFound):
			return nil, fmt.Errorf("panel: fetch stored message: %w", err)
		}
	}

	if found, err := p.scan(ctx); err != nil {
		p.logger.Warn("scan for panel failed", zap.Error(err))
	} else if found != "" {
		p.logger.Info("panel found in channel history", zap.String("message_id", found))
		return p.remember(ctx, found), nil
	}

	messageID, err := p.gateway.SendMessage(ctx, p.channelID, PanelMessage(p.categories))
	if err != nil {
		return nil, fmt.Errorf("panel: post: %w", err)
	}
	p.logger.Info("panel posted", zap.String("channel_id", p.channelID), zap.String("message_id", messageID))
	return p.remember(ctx, messageID), nil
}

func (p *PanelPublisher) scan(ctx context.Context) (string, error) {
	recent, err := p.gateway.Messages(ctx, p.channelID, panelScanDepth, "")
	if err != nil {
		return "", err
	}
	self := p.gateway.SelfID()
	for _, msg := range recent {
		if msg.Author.ID == self && IsPanelMessage(msg) {
			return msg.ID, nil
		}
	}
	return "", nil
}

func (p *PanelPublisher) remember(ctx context.Context, messageID string) *domain.PanelRef {
	ref := domain.PanelRef{ChannelID: p.channelID, MessageID: messageID, PostedAt: p.now().UTC()}
	if err := p.state.Put(ctx, ref); err != nil {
		p.logger.Warn("write panel state failed", zap.Error(err))
	}
	return &ref
}

// IsPanelMessage reports whether msg looks like a category panel.
func IsPanelMessage(msg domain.Message) bool {
	if !slices.Contains(msg.EmbedTitles, PanelTitle) {
		return false
	}
	return slices.ContainsFunc(msg.ComponentIDs, func(id string) bool {
		return strings.HasPrefix(id, categoryButtonPrefix)
	})
}

// PanelMessage renders the category-selection panel.
func PanelMessage(categories []domain.Category) gateway.OutgoingMessage {
	embed := gateway.Embed{
		Title:       PanelTitle,
		Description: "Choose a category to open a ticket.",
		Color:       panelColor,
	}
	buttons := make([]gateway.Button, 0, len(categories))
	for _, cat := range categories {
		desc := cat.Description
		if desc == "" {
			desc = "Open a " + cat.Name + " ticket."
		}
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: strings.TrimSpace(cat.Emoji + " " + cat.Name), Value: desc})
		buttons = append(buttons, gateway.Button{
			CustomID: CategoryButtonID(cat.Name),
			Label:    cat.Name,
			Emoji:    cat.Emoji,
			Style:    gateway.ButtonPrimary,
		})
	}
	return gateway.OutgoingMessage{Embeds: []gateway.Embed{embed}, Components: buttons}
}
