package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/laggis/Discord-Ticket-bot/internal/config"
	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/ratelimit"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
)

type fakeTickets struct {
	mu           sync.Mutex
	tickets      map[string]*domain.Ticket
	createErr    error
	readErr      error
	setStatusErr error
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{tickets: make(map[string]*domain.Ticket)}
}

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, t := range f.tickets {
		if t.OpenedBy.ID == ticket.OpenedBy.ID && t.Status == domain.TicketStatusOpen {
			return repository.ErrDuplicate
		}
	}
	cp := *ticket
	f.tickets[ticket.ID] = &cp
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) FindOpenByUser(_ context.Context, userID string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, t := range f.tickets {
		if t.OpenedBy.ID == userID && t.Status == domain.TicketStatusOpen {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTickets) SetStatus(_ context.Context, id string, status domain.TicketStatus, closedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	t, ok := f.tickets[id]
	if !ok || t.Status != domain.TicketStatusOpen {
		return repository.ErrNotFound
	}
	t.Status = status
	t.ClosedBy = &closedBy
	return nil
}

func (f *fakeTickets) FindOpener(_ context.Context, id string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	opener := t.OpenedBy
	return &opener, nil
}

func (f *fakeTickets) ListOpen(_ context.Context, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.Status == domain.TicketStatusOpen && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTickets) get(id string) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

type fakeBans struct {
	mu        sync.Mutex
	bans      map[string]*domain.BanRecord
	getErr    error
	createErr error
}

func newFakeBans() *fakeBans {
	return &fakeBans{bans: make(map[string]*domain.BanRecord)}
}

func (f *fakeBans) Get(_ context.Context, userID string) (*domain.BanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bans[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBans) Create(_ context.Context, ban *domain.BanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.bans[ban.UserID]; ok {
		return repository.ErrDuplicate
	}
	ban.BannedAt = time.Now()
	cp := *ban
	f.bans[ban.UserID] = &cp
	return nil
}

func (f *fakeBans) Delete(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bans[userID]; !ok {
		return false, nil
	}
	delete(f.bans, userID)
	return true, nil
}

type sentMessage struct {
	ChannelID string
	Msg       gateway.OutgoingMessage
}

type visibilityCall struct {
	ChannelID string
	MemberID  string
	Visible   bool
}

type fakeGateway struct {
	mu sync.Mutex

	channels map[string]*gateway.ChannelInfo
	history  map[string][]domain.Message // newest first
	users    map[string]domain.Identity

	created    []gateway.CreateChannelInput
	sent       []sentMessage
	direct     []sentMessage
	deleted    []string
	visibility []visibilityCall
	commands   map[string][]gateway.CommandSpec

	createErr  error
	sendErr    map[string]error
	directErr  error
	channelErr error

	nextID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: make(map[string]*gateway.ChannelInfo),
		history:  make(map[string][]domain.Message),
		users:    make(map[string]domain.Identity),
		sendErr:  make(map[string]error),
		commands: make(map[string][]gateway.CommandSpec),
	}
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%d", prefix, g.nextID)
}

func (g *fakeGateway) addChannel(info gateway.ChannelInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := info
	g.channels[info.ID] = &cp
}

func (g *fakeGateway) Channel(_ context.Context, channelID string) (*gateway.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.channelErr != nil {
		return nil, g.channelErr
	}
	ch, ok := g.channels[channelID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (g *fakeGateway) CreateChannel(_ context.Context, in gateway.CreateChannelInput) (*gateway.ChannelInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, in)
	ch := &gateway.ChannelInfo{ID: g.id("chan"), Name: in.Name, Topic: in.Topic, ParentID: in.ParentID, GuildID: in.GuildID, GuildName: "Guild"}
	g.channels[ch.ID] = ch
	cp := *ch
	return &cp, nil
}

func (g *fakeGateway) SendMessage(_ context.Context, channelID string, msg gateway.OutgoingMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.sendErr[channelID]; err != nil {
		return "", err
	}
	g.sent = append(g.sent, sentMessage{ChannelID: channelID, Msg: msg})
	return g.id("msg"), nil
}

func (g *fakeGateway) Message(_ context.Context, channelID, messageID string) (*domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.history[channelID] {
		if m.ID == messageID {
			cp := m
			return &cp, nil
		}
	}
	return nil, gateway.ErrNotFound
}

func (g *fakeGateway) Messages(_ context.Context, channelID string, limit int, beforeID string) ([]domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := g.history[channelID]
	start := 0
	if beforeID != "" {
		start = len(all)
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	return append([]domain.Message(nil), all[start:end]...), nil
}

func (g *fakeGateway) SetVisibility(_ context.Context, channelID, memberID string, visible bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.visibility = append(g.visibility, visibilityCall{ChannelID: channelID, MemberID: memberID, Visible: visible})
	return nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, channelID)
	delete(g.channels, channelID)
	return nil
}

func (g *fakeGateway) User(_ context.Context, userID string) (*domain.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[userID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &u, nil
}

func (g *fakeGateway) SendDirect(_ context.Context, userID string, msg gateway.OutgoingMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.directErr != nil {
		return "", g.directErr
	}
	g.direct = append(g.direct, sentMessage{ChannelID: userID, Msg: msg})
	return g.id("dm"), nil
}

func (g *fakeGateway) RegisterCommands(_ context.Context, guildID string, commands []gateway.CommandSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands[guildID] = commands
	return nil
}

func (g *fakeGateway) SelfID() string { return "bot" }

func (g *fakeGateway) sentTo(channelID string) []gateway.OutgoingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gateway.OutgoingMessage
	for _, s := range g.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Msg)
		}
	}
	return out
}

type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *fakeScheduler) fire() {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc        *TicketService
	moderation *ModerationService
	tickets    *fakeTickets
	bans       *fakeBans
	gw         *fakeGateway
	scheduler  *fakeScheduler
	clock      *testClock
	limiter    *ratelimit.MemoryLimiter
	dispatcher *events.InMemoryDispatcher
	events     *eventLog
}

var (
	staffRole = "role-staff"
	user      = domain.Actor{Identity: domain.Identity{ID: "u-1", DisplayName: "Alice"}}
	staff     = domain.Actor{Identity: domain.Identity{ID: "s-1", DisplayName: "Sam"}, RoleIDs: []string{staffRole}, CanBan: true}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxWindow: 15 * time.Second, CleanupInterval: time.Hour, Now: clock.Now})
	t.Cleanup(limiter.Stop)

	h := &harness{
		tickets:    newFakeTickets(),
		bans:       newFakeBans(),
		gw:         newFakeGateway(),
		scheduler:  &fakeScheduler{},
		clock:      clock,
		limiter:    limiter,
		dispatcher: events.NewInMemoryDispatcher(nil),
		events:     &eventLog{},
	}
	for _, et := range []events.EventType{
		events.EventBannedUserAttempt,
		events.EventUnauthorizedCloseAttempt,
		events.EventCloseTicket,
		events.EventBanUser,
		events.EventUnbanUser,
	} {
		h.dispatcher.Subscribe(et, h.events.record)
	}

	h.gw.addChannel(gateway.ChannelInfo{ID: "cat-support", Name: "Support", GuildID: "guild"})
	h.gw.users[user.ID] = user.Identity

	h.svc = NewTicketService(TicketDependencies{
		TicketRepo: h.tickets,
		BanRepo:    h.bans,
		Gateway:    h.gw,
		Limiter:    limiter,
		Dispatcher: h.dispatcher,
		Scheduler:  h.scheduler,
		Discord: config.DiscordConfig{
			GuildID:             "guild",
			TranscriptChannelID: "transcripts",
			StaffRoleIDs:        []string{staffRole},
		},
		Tickets: config.TicketConfig{
			Categories: config.Categories{
				{Name: "Support", ParentID: "cat-support"},
				{Name: "Panel", ParentID: ""},
				{Name: "Köp", ParentID: "cat-gone"},
			},
			DeleteDelay:    5 * time.Second,
			CreateCooldown: 15 * time.Second,
			CloseCooldown:  5 * time.Second,
			HistoryLimit:   1000,
		},
		Now: clock.Now,
	})
	h.moderation = NewModerationService(ModerationDependencies{BanRepo: h.bans, Dispatcher: h.dispatcher})
	return h
}

// seedOpenTicket stores an OPEN ticket with a channel holding the given
// messages, passed oldest first.
func (h *harness) seedOpenTicket(id string, opener domain.Identity, messages ...domain.Message) *domain.Ticket {
	channelID := "chan-" + id
	h.gw.addChannel(gateway.ChannelInfo{
		ID:        channelID,
		Name:      "ticket-" + opener.DisplayName,
		Topic:     FormatTopic(TopicInfo{ID: id, Type: "Support", Subject: "Help"}),
		GuildID:   "guild",
		GuildName: "Guild",
	})
	newestFirst := make([]domain.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		newestFirst = append(newestFirst, messages[i])
	}
	h.gw.mu.Lock()
	h.gw.history[channelID] = newestFirst
	h.gw.mu.Unlock()

	ticket := &domain.Ticket{ID: id, Type: "Support", Status: domain.TicketStatusOpen, OpenedBy: opener, Subject: "Help", ChannelID: channelID}
	h.tickets.mu.Lock()
	h.tickets.tickets[id] = ticket
	h.tickets.mu.Unlock()
	return ticket
}
