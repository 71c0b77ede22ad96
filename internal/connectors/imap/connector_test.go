package imap

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"supplymatch/internal/config"
)

func TestNewConnectorRequiresSettings(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "mail.example", IMAPUser: "u"})
	if err == nil || !strings.Contains(err.Error(), "IMAP_PASSWORD") {
		t.Fatalf("err = %v", err)
	}
}

func TestToFetched(t *testing.T) {
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	msg := &imap.Message{
		Uid:          42,
		InternalDate: date,
		Envelope: &imap.Envelope{
			Subject: "March usage",
			From: []*imap.Address{
				{PersonalName: "Clinic Orders", MailboxName: "orders", HostName: "clinic.example"},
				nil,
				{MailboxName: "ap", HostName: "clinic.example"},
			},
		},
	}

	got := toFetched(msg, []byte("raw"))
	if got.Provider != "imap" || got.MessageID != "imap-42" || got.Subject != "March usage" {
		t.Fatalf("got %+v", got)
	}
	if got.From != "Clinic Orders <orders@clinic.example>, ap@clinic.example" {
		t.Fatalf("from = %q", got.From)
	}
	if got.ReceivedAt != "2026-03-01T14:30:00Z" {
		t.Fatalf("received = %q", got.ReceivedAt)
	}

	msg.Envelope.MessageId = "<abc@clinic.example>"
	if got := toFetched(msg, nil); got.MessageID != "<abc@clinic.example>" {
		t.Fatalf("message id = %q", got.MessageID)
	}
}
