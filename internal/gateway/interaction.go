package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder answers a single interaction. Acknowledgements that
// fail with a platform 5xx are retried once after RetryDelay.
type InteractionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	retryDelay  time.Duration

	mu       sync.Mutex
	deferred bool
}

// NewInteractionResponder binds a responder to one interaction.
func NewInteractionResponder(session *discordgo.Session, interaction *discordgo.Interaction, retryDelay time.Duration) *InteractionResponder {
	return &InteractionResponder{session: session, interaction: interaction, retryDelay: retryDelay}
}

// Defer acknowledges the interaction privately so a slow handler can reply later.
func (r *InteractionResponder) Defer(ctx context.Context) error {
	err := retryOnce(ctx, r.retryDelay, func() error {
		return mapError(r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}, discordgo.WithContext(ctx)))
	})
	if err == nil {
		r.mu.Lock()
		r.deferred = true
		r.mu.Unlock()
	}
	return err
}

// Reply answers the interaction, editing the deferred response when Defer ran first.
func (r *InteractionResponder) Reply(ctx context.Context, reply Reply) error {
	r.mu.Lock()
	deferred := r.deferred
	r.mu.Unlock()

	embeds := toEmbeds(reply.Embeds)
	if deferred {
		content := reply.Content
		return retryOnce(ctx, r.retryDelay, func() error {
			_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
				Content: &content,
				Embeds:  &embeds,
			}, discordgo.WithContext(ctx))
			return mapError(err)
		})
	}

	data := &discordgo.InteractionResponseData{Content: reply.Content, Embeds: embeds}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return retryOnce(ctx, r.retryDelay, func() error {
		return mapError(r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		}, discordgo.WithContext(ctx)))
	})
}

// ShowModal opens a form for the caller.
func (r *InteractionResponder) ShowModal(ctx context.Context, modal Modal) error {
	rows := make([]discordgo.MessageComponent, 0, len(modal.Fields))
	for _, f := range modal.Fields {
		style := discordgo.TextInputShort
		if f.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    f.CustomID,
				Label:       f.Label,
				Style:       style,
				Placeholder: f.Placeholder,
				Required:    f.Required,
				MaxLength:   f.MaxLength,
			},
		}})
	}
	return retryOnce(ctx, r.retryDelay, func() error {
		return mapError(r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   modal.CustomID,
				Title:      modal.Title,
				Components: rows,
			},
		}, discordgo.WithContext(ctx)))
	})
}

// retryOnce runs fn and, if it fails with a platform 5xx, runs it once more after delay.
func retryOnce(ctx context.Context, delay time.Duration, fn func() error) error {
	err := fn()
	if err == nil || !IsServerError(err) {
		return err
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-timer.C:
	}
	return fn()
}
