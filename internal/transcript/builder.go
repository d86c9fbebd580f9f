package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// Meta describes where the transcript came from.
type Meta struct {
	TicketID    string
	GuildName   string
	ChannelName string
}

// Stats summarises the conversation covered by a transcript.
type Stats struct {
	MessageCount int
	Duration     time.Duration
	First        time.Time
	Last         time.Time
}

// DurationLabel renders the duration as "Xm Ys" or "Ys".
func (s Stats) DurationLabel() string {
	seconds := int(s.Duration.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if mins := seconds / 60; mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Document is the rendered transcript of one closed ticket.
type Document struct {
	TicketID    string
	HTML        []byte
	Stats       Stats
	GeneratedAt time.Time
}

// FileName is the attachment name used when the document is uploaded.
func (d *Document) FileName() string {
	return "transcript-" + d.TicketID + ".html"
}

// Builder renders transcripts. Now is injected so output is reproducible.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a builder; a nil now uses time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// IsImage reports whether an attachment should be rendered inline.
func IsImage(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(name)))
}

// Build sorts messages oldest first and renders them into a single HTML page.
func (b *Builder) Build(messages []domain.Message, meta Meta) (*Document, error) {
	sorted := slices.Clone(messages)
	SortChronological(sorted)

	generatedAt := b.now().UTC()
	stats := computeStats(sorted, generatedAt)

	view := pageView{
		TicketID:    meta.TicketID,
		GuildName:   meta.GuildName,
		ChannelName: meta.ChannelName,
		GeneratedAt: generatedAt.Format(time.RFC3339),
		Messages:    make([]messageView, 0, len(sorted)),
	}
	for _, msg := range sorted {
		view.Messages = append(view.Messages, toMessageView(msg))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return &Document{
		TicketID:    meta.TicketID,
		HTML:        buf.Bytes(),
		Stats:       stats,
		GeneratedAt: generatedAt,
	}, nil
}

// SortChronological orders by timestamp, breaking ties by snowflake id.
func SortChronological(messages []domain.Message) {
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return compareSnowflakes(a.ID, b.ID)
	})
}

// compareSnowflakes orders numeric ids without parsing: shorter is smaller.
func compareSnowflakes(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func computeStats(sorted []domain.Message, fallback time.Time) Stats {
	stats := Stats{MessageCount: len(sorted), First: fallback, Last: fallback}
	if len(sorted) > 0 {
		stats.First = sorted[0].Timestamp
		stats.Last = sorted[len(sorted)-1].Timestamp
	}
	stats.Duration = max(stats.Last.Sub(stats.First), time.Second)
	return stats
}

type pageView struct {
	TicketID    string
	GuildName   string
	ChannelName string
	GeneratedAt string
	Messages    []messageView
}

type messageView struct {
	Author      string
	AvatarURL   string
	Timestamp   string
	Content     string
	Attachments []attachmentView
}

type attachmentView struct {
	Name  string
	URL   string
	Image bool
}

func toMessageView(msg domain.Message) messageView {
	author := msg.Author.DisplayName
	if author == "" {
		author = "Unknown"
	}
	view := messageView{
		Author:    author,
		AvatarURL: msg.AvatarURL,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
		Content:   msg.Content,
	}
	for _, att := range msg.Attachments {
		name := att.Name
		if name == "" {
			name = "attachment"
		}
		view.Attachments = append(view.Attachments, attachmentView{Name: name, URL: att.URL, Image: IsImage(att.Name)})
	}
	return view
}

var pageTemplate = template.Must(template.New("transcript").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Ticket {{.TicketID}} Transcript</title>
<style>body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Arial,sans-serif;background:#0b0f14;color:#e5e7eb;line-height:1.4;padding:16px} .header{margin-bottom:16px} .message{display:flex;gap:10px;padding:10px;border-bottom:1px solid #1f2937} .avatar{width:40px;height:40px;border-radius:50%} .author{font-weight:bold} .timestamp{color:#9ca3af;font-size:12px;margin-left:8px} .content{white-space:pre-wrap;margin-top:4px} .attachment{margin-top:6px} img{max-width:480px;border-radius:6px}</style>
</head><body>
<h1>Ticket {{.TicketID}} Transcript</h1>
<div class="header"><div>Guild: {{.GuildName}}</div><div>Channel: {{.ChannelName}}</div></div>
{{range .Messages}}<div class="message">
{{if .AvatarURL}}<img class="avatar" src="{{.AvatarURL}}" alt="">{{end}}
<div class="meta">
<div class="header"><span class="author">{{.Author}}</span> <span class="timestamp">{{.Timestamp}}</span></div>
<div class="content">{{.Content}}</div>
{{range .Attachments}}<div class="attachment">{{if .Image}}<img src="{{.URL}}" alt="{{.Name}}">{{else}}<a href="{{.URL}}" target="_blank">{{.Name}}</a>{{end}}</div>
{{end}}</div>
</div>
{{end}}<div class="footer">Generated {{.GeneratedAt}}</div>
</body></html>
`))
