// Package connectors pulls usage-report mail from a mailbox and keeps a raw
// copy of each message on disk.
package connectors

import (
	"context"

	"supplymatch/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
