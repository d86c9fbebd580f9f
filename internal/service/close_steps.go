package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
	"github.com/laggis/Discord-Ticket-bot/internal/transcript"
)

// Close step names, in execution order.
const (
	StepFetchHistory     = "fetch_history"
	StepBuildTranscript  = "build_transcript"
	StepLookupOpener     = "lookup_opener"
	StepArchive          = "archive_transcript"
	StepNotifyOpener     = "notify_opener"
	StepPostSummary      = "post_summary"
	StepUpdateStatus     = "update_status"
	StepRevokeOpener     = "revoke_opener"
	StepAnnounceDeletion = "announce_deletion"
	StepScheduleDeletion = "schedule_deletion"
)

// StepStatus is the outcome of one close step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records how a close step went.
type StepResult struct {
	Name   string
	Status StepStatus
	Err    error
}

// CloseReport accumulates the outcome of every close step.
type CloseReport struct {
	TicketID    string
	ChannelID   string
	Steps       []StepResult
	Transcript  *transcript.Document
	Opener      *domain.Identity
	DeleteAfter time.Duration
}

// Step returns the result for the named step.
func (r *CloseReport) Step(name string) (StepResult, bool) {
	for _, step := range r.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return StepResult{}, false
}

// Failed lists the names of steps that failed.
func (r *CloseReport) Failed() []string {
	var names []string
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			names = append(names, step.Name)
		}
	}
	return names
}

// Degraded reports whether any step failed.
func (r *CloseReport) Degraded() bool {
	return len(r.Failed()) > 0
}

// errSkip marks a step that had nothing to do.
var errSkip = errors.New("skipped")

type closeRun struct {
	ticket    *domain.Ticket
	channel   *gateway.ChannelInfo
	actor     domain.Actor
	fromTopic bool

	messages []domain.Message
	opener   *domain.Identity
	report   *CloseReport
}

type closeStep struct {
	name string
	run  func(ctx context.Context, run *closeRun) error
}

func (s *TicketService) closeSteps() []closeStep {
	return []closeStep{
		{StepFetchHistory, s.fetchHistory},
		{StepBuildTranscript, s.buildTranscript},
		{StepLookupOpener, s.lookupOpener},
		{StepArchive, s.archiveTranscript},
		{StepNotifyOpener, s.notifyOpener},
		{StepPostSummary, s.postSummary},
		{StepUpdateStatus, s.updateStatus},
		{StepRevokeOpener, s.revokeOpener},
		{StepAnnounceDeletion, s.announceDeletion},
		{StepScheduleDeletion, s.scheduleDeletion},
	}
}

// runClose executes every step in order. A failing step never stops the ones after it.
func (s *TicketService) runClose(ctx context.Context, run *closeRun) *CloseReport {
	run.report = &CloseReport{
		TicketID:    run.ticket.ID,
		ChannelID:   run.channel.ID,
		DeleteAfter: s.cfg.DeleteDelay,
	}
	for _, step := range s.closeSteps() {
		err := s.runStep(ctx, step, run)
		result := StepResult{Name: step.name, Status: StepOK}
		switch {
		case errors.Is(err, errSkip):
			result.Status = StepSkipped
		case err != nil:
			result.Status = StepFailed
			result.Err = err
			s.metrics.CloseStepFailed(step.name)
			s.logger.Warn("close step failed",
				zap.String("ticket_id", run.ticket.ID),
				zap.String("channel_id", run.channel.ID),
				zap.String("step", step.name),
				zap.Error(err))
		}
		run.report.Steps = append(run.report.Steps, result)
	}
	run.report.Opener = run.opener
	return run.report
}

func (s *TicketService) runStep(ctx context.Context, step closeStep, run *closeRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return step.run(ctx, run)
}

func (s *TicketService) fetchHistory(ctx context.Context, run *closeRun) error {
	messages, err := transcript.CollectHistory(ctx, s.gateway, run.channel.ID, s.cfg.HistoryLimit)
	run.messages = messages
	return err
}

func (s *TicketService) buildTranscript(_ context.Context, run *closeRun) error {
	doc, err := s.transcripts.Build(run.messages, transcript.Meta{
		TicketID:    run.ticket.ID,
		GuildName:   run.channel.GuildName,
		ChannelName: run.channel.Name,
	})
	if err != nil {
		return err
	}
	run.report.Transcript = doc
	return nil
}

func (s *TicketService) lookupOpener(ctx context.Context, run *closeRun) error {
	opener, err := s.tickets.FindOpener(ctx, run.ticket.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return errSkip
	}
	if err != nil {
		return err
	}
	if user, err := s.gateway.User(ctx, opener.ID); err == nil && user.DisplayName != "" {
		opener.DisplayName = user.DisplayName
	}
	run.opener = opener
	return nil
}

func (s *TicketService) archiveTranscript(ctx context.Context, run *closeRun) error {
	if s.discord.TranscriptChannelID == "" || run.report.Transcript == nil {
		return errSkip
	}
	_, err := s.gateway.SendMessage(ctx, s.discord.TranscriptChannelID, gateway.OutgoingMessage{
		Content: "Transcript for ticket " + run.ticket.ID,
		Files:   []gateway.File{transcriptFile(run.report.Transcript)},
	})
	return err
}

// notifyOpener sends the transcript by direct message. When the DM cannot be
// delivered a notice is posted in the ticket channel and the step still fails.
func (s *TicketService) notifyOpener(ctx context.Context, run *closeRun) error {
	if run.opener == nil {
		return errSkip
	}
	msg := gateway.OutgoingMessage{
		Content: "Your ticket has been closed. Here is your transcript:",
		Embeds:  []gateway.Embed{ticketClosedEmbed(s.summary(run))},
	}
	if run.report.Transcript != nil {
		msg.Files = []gateway.File{transcriptFile(run.report.Transcript)}
	}
	_, err := s.gateway.SendDirect(ctx, run.opener.ID, msg)
	if err == nil {
		return nil
	}
	notice := gateway.OutgoingMessage{Content: "Note: the transcript could not be sent to the ticket opener by direct message."}
	if _, noticeErr := s.gateway.SendMessage(ctx, run.channel.ID, notice); noticeErr != nil {
		return errors.Join(err, noticeErr)
	}
	return err
}

func (s *TicketService) postSummary(ctx context.Context, run *closeRun) error {
	_, err := s.gateway.SendMessage(ctx, run.channel.ID, gateway.OutgoingMessage{
		Embeds: []gateway.Embed{ticketClosedEmbed(s.summary(run))},
	})
	return err
}

func (s *TicketService) updateStatus(ctx context.Context, run *closeRun) error {
	err := s.tickets.SetStatus(ctx, run.ticket.ID, domain.TicketStatusClosed, run.actor.ID)
	if err != nil && run.fromTopic && errors.Is(err, repository.ErrNotFound) {
		return errSkip
	}
	return err
}

func (s *TicketService) revokeOpener(ctx context.Context, run *closeRun) error {
	if run.opener == nil {
		return errSkip
	}
	return s.gateway.SetVisibility(ctx, run.channel.ID, run.opener.ID, false)
}

func (s *TicketService) announceDeletion(ctx context.Context, run *closeRun) error {
	seconds := max(1, int(s.cfg.DeleteDelay.Round(time.Second)/time.Second))
	_, err := s.gateway.SendMessage(ctx, run.channel.ID, gateway.OutgoingMessage{
		Content: fmt.Sprintf("This channel will be removed in %ds.", seconds),
	})
	return err
}

// scheduleDeletion removes the channel after the configured delay. The close
// stays marked in flight until then so a second request is refused.
func (s *TicketService) scheduleDeletion(_ context.Context, run *closeRun) error {
	ticketID, channelID := run.ticket.ID, run.channel.ID
	s.scheduler.AfterFunc(s.cfg.DeleteDelay, func() {
		defer s.endClose(ticketID)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.gateway.DeleteChannel(ctx, channelID); err != nil {
			s.logger.Error("delete ticket channel failed",
				zap.String("ticket_id", ticketID),
				zap.String("channel_id", channelID),
				zap.Error(err))
			return
		}
		s.logger.Info("ticket channel deleted", zap.String("ticket_id", ticketID), zap.String("channel_id", channelID))
	})
	return nil
}

func (s *TicketService) summary(run *closeRun) closedSummary {
	stats := transcript.Stats{MessageCount: len(run.messages), Duration: time.Second}
	if run.report.Transcript != nil {
		stats = run.report.Transcript.Stats
	}
	return closedSummary{
		Ticket:   run.ticket,
		Opener:   run.opener,
		ClosedBy: run.actor.Identity,
		Stats:    stats,
		At:       s.now(),
	}
}

func transcriptFile(doc *transcript.Document) gateway.File {
	return gateway.File{Name: doc.FileName(), ContentType: "text/html", Data: doc.HTML}
}
