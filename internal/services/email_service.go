package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/justsurfingit/elevate-tracker/internal/database"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

const fullSyncQuery = "subject:(application OR interview OR update OR offer OR rejected OR status) newer_than:7d"

// InboxMessage is the part of a Gmail message the watcher reads.
type InboxMessage struct {
	ID      string
	Subject string
	From    string
	Body    string
}

// Outcome of processing one message.
type Outcome string

const (
	OutcomeNoCompany   Outcome = "no_company"
	OutcomeNoActive    Outcome = "no_active_application"
	OutcomeAmbiguous   Outcome = "ambiguous"
	OutcomeNoChange    Outcome = "no_change"
	OutcomeSameStatus  Outcome = "same_status"
	OutcomeUpdated     Outcome = "updated"
	OutcomeAnalysisErr Outcome = "analysis_failed"
)

type EmailService struct {
	Jobs      *JobApplicationService
	LLM       *LLMService
	Matcher   *MatcherService
	Gmail     *gmail.Service
	State     database.SyncStateStore
	UserEmail string
	Interval  time.Duration
	Log       logrus.FieldLogger
}

func NewEmailService(jobs *JobApplicationService, llm *LLMService, gmailSvc *gmail.Service, matcher *MatcherService,
	state database.SyncStateStore, userEmail string, interval time.Duration, log logrus.FieldLogger) *EmailService {
	return &EmailService{
		Jobs:      jobs,
		LLM:       llm,
		Matcher:   matcher,
		Gmail:     gmailSvc,
		State:     state,
		UserEmail: userEmail,
		Interval:  interval,
		Log:       log.WithField("component", "email_watcher"),
	}
}

// StartWatcher polls the inbox until ctx is done.
func (s *EmailService) StartWatcher(ctx context.Context) {
	if s.Gmail == nil {
		s.Log.Warn("Gmail watcher disabled (no client). Check credentials.")
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.SyncEmails(ctx)
		for {
			select {
			case <-ctx.Done():
				s.Log.Info("Gmail watcher stopped")
				return
			case <-ticker.C:
				s.SyncEmails(ctx)
			}
		}
	}()
}

// SyncEmails runs one sync cycle.
func (s *EmailService) SyncEmails(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	s.Log.Info("Starting sync cycle")

	lastID, err := s.State.HistoryID(ctx, s.UserEmail)
	if err != nil {
		s.Log.WithError(err).Error("Could not read history bookmark")
		return
	}

	var messages []*gmail.Message
	var newHistoryID uint64

	if lastID == 0 {
		s.Log.Info("First run detected, running full bootstrap sync")
		messages, newHistoryID, err = s.performFullSync(ctx)
	} else {
		messages, newHistoryID, err = s.performIncrementalSync(ctx, lastID)
		if err != nil && isHistoryExpiredError(err) {
			s.Log.Warn("History id expired, falling back to full sync")
			messages, newHistoryID, err = s.performFullSync(ctx)
		}
	}
	if err != nil {
		s.Log.WithError(err).Error("Sync failed")
		return
	}

	if len(messages) == 0 {
		s.Log.Info("No new relevant emails found")
	} else {
		s.Log.WithField("count", len(messages)).Info("Processing candidate emails")
	}

	for _, msg := range messages {
		done, err := s.State.IsProcessed(ctx, msg.Id)
		if err != nil {
			s.Log.WithError(err).WithField("message_id", msg.Id).Warn("Dedup lookup failed")
			continue
		}
		if done {
			continue
		}

		s.ProcessMessage(ctx, messageFromGmail(msg))

		if err := s.State.MarkProcessed(ctx, msg.Id); err != nil {
			s.Log.WithError(err).WithField("message_id", msg.Id).Warn("Could not mark email processed")
		}
	}

	// Save the bookmark even when nothing matched so this window is not read again.
	if newHistoryID > lastID {
		if err := s.State.SaveHistoryID(ctx, s.UserEmail, newHistoryID); err != nil {
			s.Log.WithError(err).Error("Could not save history bookmark")
			return
		}
		s.Log.WithField("history_id", newHistoryID).Info("History updated")
	}
}

// performFullSync scans the last 7 days and resets the history id.
func (s *EmailService) performFullSync(ctx context.Context) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListMessagesResponse
	err := s.retry(ctx, 3, time.Second, func() error {
		var e error
		resp, e = s.Gmail.Users.Messages.List("me").Q(fullSyncQuery).MaxResults(50).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	profile, err := s.Gmail.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, 0, err
	}
	return s.expandMessages(ctx, resp.Messages), profile.HistoryId, nil
}

// performIncrementalSync asks only for messages added since startID.
func (s *EmailService) performIncrementalSync(ctx context.Context, startID uint64) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListHistoryResponse
	err := s.retry(ctx, 3, time.Second, func() error {
		var e error
		resp, e = s.Gmail.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	var headers []*gmail.Message
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				headers = append(headers, added.Message)
			}
		}
	}
	return s.expandMessages(ctx, headers), resp.HistoryId, nil
}

func (s *EmailService) expandMessages(ctx context.Context, headers []*gmail.Message) []*gmail.Message {
	var full []*gmail.Message
	for _, h := range headers {
		_ = s.retry(ctx, 2, 500*time.Millisecond, func() error {
			msg, err := s.Gmail.Users.Messages.Get("me", h.Id).Context(ctx).Do()
			if err == nil {
				full = append(full, msg)
			}
			return err
		})
	}
	return full
}

// ProcessMessage matches msg to one of the user's active applications and moves it
// to the status the email implies.
func (s *EmailService) ProcessMessage(ctx context.Context, msg InboxMessage) Outcome {
	shortSub := truncateChars(msg.Subject, 20)
	if shortSub != msg.Subject {
		shortSub += "..."
	}
	log := s.Log.WithFields(logrus.Fields{"email_subject": shortSub, "from": msg.From})
	log.Info("Start processing")

	active, err := s.Jobs.Active(ctx, s.UserEmail)
	if err != nil {
		log.WithError(err).Error("Could not load applications")
		return OutcomeNoActive
	}
	if len(active) == 0 {
		log.Info("Skipped: no active applications")
		return OutcomeNoActive
	}

	candidates := s.Matcher.MatchApplications(active, msg.Subject, msg.From)
	if len(candidates) == 0 {
		log.Info("Skipped: company match failed")
		return OutcomeNoCompany
	}
	log = log.WithField("company", candidates[0].Company)

	target := candidates[0]
	if len(candidates) > 1 {
		positions := make([]string, len(candidates))
		for i, c := range candidates {
			positions[i] = c.Position
		}
		log.WithField("positions", positions).Info("Ambiguous, asking LLM to pick")
		idx := s.LLM.IdentifyApplication(ctx, positions, msg.Subject, msg.Body)
		if idx < 0 {
			log.Info("Skipped: LLM could not tell which application this is about")
			return OutcomeAmbiguous
		}
		target = candidates[idx]
	}
	log = log.WithFields(logrus.Fields{"id": target.ID, "position": target.Position})

	analysis, err := s.LLM.AnalyzeEmailStatus(ctx, target.Company, msg.Subject, msg.Body)
	if err != nil {
		log.WithError(err).Warn("Skipped: LLM analysis error")
		return OutcomeAnalysisErr
	}
	log.WithFields(logrus.Fields{"decision": analysis.Status, "summary": analysis.Summary}).Info("LLM decision")

	status, ok := analysis.NewStatus()
	if !ok {
		log.Info("No update needed")
		return OutcomeNoChange
	}
	if status == target.Status {
		log.WithField("status", status).Info("Status unchanged")
		return OutcomeSameStatus
	}

	if _, err := s.Jobs.Update(ctx, s.UserEmail, target.ID, models.ApplicationPatch{Status: &status}); err != nil {
		log.WithError(err).Error("Update failed")
		return OutcomeAnalysisErr
	}
	log.WithFields(logrus.Fields{"from_status": target.Status, "to_status": status}).Info("Application updated from email")
	return OutcomeUpdated
}

// retry runs f with exponential backoff. A history 404 is returned at once so the
// caller can switch to a full sync.
func (s *EmailService) retry(ctx context.Context, attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if isHistoryExpiredError(err) {
			return err
		}

		s.Log.WithError(err).WithField("retry_in", sleep).Warn("Gmail API error")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func isHistoryExpiredError(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == 404
}

func messageFromGmail(msg *gmail.Message) InboxMessage {
	out := InboxMessage{ID: msg.Id}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			out.Subject = h.Value
		case "From":
			out.From = h.Value
		}
	}
	out.Body = emailBody(msg.Payload)
	return out
}

// emailBody prefers the top-level body, then text/plain, then text/html.
func emailBody(p *gmail.MessagePart) string {
	if p.Body != nil && p.Body.Data != "" {
		return decodePart(p.Body.Data)
	}
	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range p.Parts {
			if part.MimeType == mime && part.Body != nil && part.Body.Data != "" {
				return decodePart(part.Body.Data)
			}
		}
	}
	return ""
}

func decodePart(data string) string {
	d, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits padding.
		d, _ = base64.RawURLEncoding.DecodeString(data)
	}
	return string(d)
}
