package transcript

import (
	"context"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// PageSize is the largest page the chat platform returns per history request.
const PageSize = 100

// DefaultHistoryLimit caps how many messages a transcript covers.
const DefaultHistoryLimit = 1000

// Pager returns up to limit messages older than beforeID, newest first.
// An empty beforeID starts from the most recent message.
type Pager interface {
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]domain.Message, error)
}

// CollectHistory pages backwards through a channel until max messages are
// gathered or the platform returns an empty page.
func CollectHistory(ctx context.Context, pager Pager, channelID string, max int) ([]domain.Message, error) {
	if max <= 0 {
		max = DefaultHistoryLimit
	}
	var (
		out    []domain.Message
		before string
	)
	for len(out) < max {
		limit := min(PageSize, max-len(out))
		page, err := pager.Messages(ctx, channelID, limit, before)
		if err != nil {
			return out, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		before = page[len(page)-1].ID
		if len(page) < limit {
			break
		}
	}
	return out, nil
}
