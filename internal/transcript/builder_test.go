package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newBuilder() *Builder {
	return NewBuilder(func() time.Time { return fixedNow })
}

func msg(id string, at time.Time, author, content string) domain.Message {
	return domain.Message{ID: id, Timestamp: at, Author: domain.Identity{ID: "u-" + author, DisplayName: author}, Content: content}
}

func TestBuild_SortsAscendingAndCountsStats(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	messages := []domain.Message{
		msg("103", start.Add(42*time.Second), "carol", "third"),
		msg("102", start.Add(10*time.Second), "bob", "second"),
		msg("101", start, "alice", "first"),
	}

	doc, err := newBuilder().Build(messages, Meta{TicketID: "t-1", GuildName: "Guild", ChannelName: "ticket-alice"})
	require.NoError(t, err)

	html := string(doc.HTML)
	first := strings.Index(html, "first")
	second := strings.Index(html, "second")
	third := strings.Index(html, "third")
	assert.True(t, first < second && second < third, "messages out of order")

	assert.Equal(t, 3, doc.Stats.MessageCount)
	assert.Equal(t, 42*time.Second, doc.Stats.Duration)
	assert.Equal(t, "42s", doc.Stats.DurationLabel())
	assert.Equal(t, "t-1", doc.TicketID)
	assert.Equal(t, "transcript-t-1.html", doc.FileName())
	assert.Contains(t, html, "Generated 2024-06-01T10:00:00Z")

	// input slice is left untouched
	assert.Equal(t, "103", messages[0].ID)
}

func TestBuild_TieBreaksOnSnowflake(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	messages := []domain.Message{
		msg("1000", at, "a", "later-id"),
		msg("999", at, "a", "earlier-id"),
	}
	doc, err := newBuilder().Build(messages, Meta{TicketID: "t"})
	require.NoError(t, err)

	html := string(doc.HTML)
	assert.Less(t, strings.Index(html, "earlier-id"), strings.Index(html, "later-id"))
}

func TestBuild_EscapesUserText(t *testing.T) {
	messages := []domain.Message{{
		ID:        "1",
		Timestamp: fixedNow,
		Author:    domain.Identity{DisplayName: `<b>"evil"</b>`},
		Content:   `<script>alert("x")</script> & more`,
		Attachments: []domain.Attachment{
			{Name: `<img onerror=x>.txt`, URL: "https://cdn.example/a.txt"},
		},
	}}
	doc, err := newBuilder().Build(messages, Meta{TicketID: "t", GuildName: "<Guild>", ChannelName: "a&b"})
	require.NoError(t, err)

	html := string(doc.HTML)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>")
	assert.NotContains(t, html, "<img onerror")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "&amp; more")
	assert.Contains(t, html, "Guild: &lt;Guild&gt;")
	assert.Contains(t, html, "Channel: a&amp;b")
}

func TestBuild_SingleMessageDurationIsAtLeastOneSecond(t *testing.T) {
	doc, err := newBuilder().Build([]domain.Message{msg("1", fixedNow, "a", "only")}, Meta{TicketID: "t"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, doc.Stats.Duration)
	assert.Equal(t, "1s", doc.Stats.DurationLabel())
}

func TestBuild_EmptyHistory(t *testing.T) {
	doc, err := newBuilder().Build(nil, Meta{TicketID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Stats.MessageCount)
	assert.Equal(t, time.Second, doc.Stats.Duration)
	assert.Contains(t, string(doc.HTML), "Ticket t Transcript")
}

func TestBuild_Deterministic(t *testing.T) {
	messages := []domain.Message{msg("2", fixedNow.Add(time.Minute), "b", "y"), msg("1", fixedNow, "a", "x")}
	a, err := newBuilder().Build(messages, Meta{TicketID: "t"})
	require.NoError(t, err)
	b, err := newBuilder().Build(messages, Meta{TicketID: "t"})
	require.NoError(t, err)
	assert.Equal(t, a.HTML, b.HTML)
}

func TestBuild_Attachments(t *testing.T) {
	m := msg("1", fixedNow, "a", "")
	m.Attachments = []domain.Attachment{
		{Name: "shot.PNG", URL: "https://cdn.example/shot.PNG"},
		{Name: "log.txt", URL: "https://cdn.example/log.txt"},
	}
	doc, err := newBuilder().Build([]domain.Message{m}, Meta{TicketID: "t"})
	require.NoError(t, err)

	html := string(doc.HTML)
	assert.Contains(t, html, `<img src="https://cdn.example/shot.PNG" alt="shot.PNG">`)
	assert.Contains(t, html, `<a href="https://cdn.example/log.txt" target="_blank">log.txt</a>`)
}

func TestIsImage(t *testing.T) {
	for _, name := range []string{"a.png", "a.JPG", "a.jpeg", "a.Gif", "a.webp"} {
		assert.True(t, IsImage(name), name)
	}
	for _, name := range []string{"a.txt", "png", "a.png.zip", ""} {
		assert.False(t, IsImage(name), name)
	}
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "1s", Stats{}.DurationLabel())
	assert.Equal(t, "59s", Stats{Duration: 59 * time.Second}.DurationLabel())
	assert.Equal(t, "1m 0s", Stats{Duration: time.Minute}.DurationLabel())
	assert.Equal(t, "61m 5s", Stats{Duration: 61*time.Minute + 5*time.Second}.DurationLabel())
}

type fakePager struct {
	all   []domain.Message // newest first
	calls []string
	err   error
}

func (p *fakePager) Messages(_ context.Context, _ string, limit int, beforeID string) ([]domain.Message, error) {
	p.calls = append(p.calls, beforeID)
	if p.err != nil {
		return nil, p.err
	}
	start := 0
	if beforeID != "" {
		for i, m := range p.all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(p.all))
	return p.all[start:end], nil
}

func newestFirst(n int) []domain.Message {
	out := make([]domain.Message, n)
	for i := range out {
		out[i] = domain.Message{ID: time.Duration(n - i).String(), Timestamp: fixedNow.Add(time.Duration(n-i) * time.Second)}
	}
	return out
}

func TestCollectHistory_PagesUntilExhausted(t *testing.T) {
	pager := &fakePager{all: newestFirst(250)}
	got, err := CollectHistory(context.Background(), pager, "c", 1000)
	require.NoError(t, err)
	assert.Len(t, got, 250)
	assert.Len(t, pager.calls, 3)
	assert.Equal(t, "", pager.calls[0])
}

func TestCollectHistory_StopsAtMax(t *testing.T) {
	pager := &fakePager{all: newestFirst(1200)}
	got, err := CollectHistory(context.Background(), pager, "c", 1000)
	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Len(t, pager.calls, 10)
}

func TestCollectHistory_PropagatesError(t *testing.T) {
	pager := &fakePager{err: errors.New("boom")}
	_, err := CollectHistory(context.Background(), pager, "c", 0)
	assert.EqualError(t, err, "boom")
}
