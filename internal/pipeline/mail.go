package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"

	"supplymatch/internal"
	"supplymatch/internal/ingest"
	"supplymatch/internal/storage"
)

type Attachment struct {
	Filename string
	Content  []byte
}

type ReportMail struct {
	Subject     string
	Text        string
	Attachments []Attachment
}

// Names lists every attachment file name, decodable or not.
func (m ReportMail) Names() []string {
	out := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		out = append(out, a.Filename)
	}
	return out
}

func ReadReportMail(raw []byte) (ReportMail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ReportMail{}, err
	}

	out := ReportMail{Subject: env.GetHeader("Subject"), Text: env.Text}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, att := range parts {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.Attachments = append(out.Attachments, Attachment{Filename: filename, Content: att.Content})
	}
	return out, nil
}

type MailResult struct {
	InboxID int
	Report  bool
	Uploads []ProcessResult
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (MailResult, error) {
	msg, err := s.db.GetInboxMessageByProviderID(ctx, provider, messageID)
	if err != nil {
		return MailResult{}, err
	}
	if msg == nil {
		return MailResult{}, fmt.Errorf("inbox message %s/%s: %w", provider, messageID, storage.ErrNotFound)
	}
	return s.ProcessMail(ctx, *msg)
}

// ProcessPending processes fetched messages oldest first and returns how many
// mails were handled and how many uploads they produced.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListInboxByStatus(ctx, storage.InboxFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	mails, uploads := 0, 0
	for _, msg := range pending {
		if provider != "" && msg.Provider != provider {
			continue
		}
		res, err := s.ProcessMail(ctx, msg)
		if err != nil {
			return mails, uploads, err
		}
		mails++
		uploads += len(res.Uploads)
	}
	return mails, uploads, nil
}

// ProcessMail runs every decodable attachment of a usage-report mail through
// ProcessUpload. Mail that does not look like a report is marked skipped.
func (s *ProcessingService) ProcessMail(ctx context.Context, msg internal.InboxMessage) (MailResult, error) {
	res := MailResult{InboxID: msg.ID}
	raw, err := os.ReadFile(msg.RawRef)
	if err != nil {
		return res, err
	}
	mail, err := ReadReportMail(raw)
	if err != nil {
		_ = s.db.UpdateInboxStatus(ctx, msg.ID, storage.InboxFailed)
		return res, err
	}

	subject := mail.Subject
	if strings.TrimSpace(subject) == "" {
		subject = msg.Subject
	}
	detect := DetectUsageReport(subject, mail.Text, mail.Names())
	if !detect.IsReport {
		s.log.Info().Int("inbox", msg.ID).Str("reason", detect.Reason).Msg("mail skipped")
		return res, s.db.UpdateInboxStatus(ctx, msg.ID, storage.InboxSkipped)
	}
	res.Report = true

	for _, att := range mail.Attachments {
		if !ingest.Supported(att.Filename) {
			continue
		}
		up, err := s.ProcessUpload(ctx, att.Filename, att.Content)
		if err != nil {
			_ = s.db.UpdateInboxStatus(ctx, msg.ID, storage.InboxFailed)
			return res, fmt.Errorf("attachment %s: %w", att.Filename, err)
		}
		res.Uploads = append(res.Uploads, up)
	}

	s.log.Info().Int("inbox", msg.ID).Int("uploads", len(res.Uploads)).Msg("mail processed")
	return res, s.db.UpdateInboxStatus(ctx, msg.ID, storage.InboxProcessed)
}
