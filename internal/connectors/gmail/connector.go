package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"supplymatch/internal"
	"supplymatch/internal/config"
)

// reportQuery narrows the listing to mail that can carry a usage report.
const reportQuery = "has:attachment"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(reportQuery).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}

		rawResp, err := c.service.Users.Messages.Get("me", msgRef.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}

		rawBytes, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(msgRef.Id, rawResp.InternalDate, rawBytes))
	}

	return out, nil
}

// toFetched reads the envelope headers out of the raw message. Gmail's
// internal date (ms since epoch) stands in when the Date header is unusable.
func toFetched(gmailID string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	msg := internal.FetchedMailMessage{Provider: "gmail", MessageID: gmailID, Raw: raw}

	received := time.Now().UTC()
	if internalDateMs > 0 {
		received = time.UnixMilli(internalDateMs).UTC()
	}

	if env, err := enmime.ReadEnvelope(bytes.NewReader(raw)); err == nil {
		msg.Subject = env.GetHeader("Subject")
		msg.From = env.GetHeader("From")
		if id := env.GetHeader("Message-ID"); id != "" {
			msg.MessageID = id
		}
		if d := env.GetHeader("Date"); d != "" {
			if t, err := mail.ParseDate(d); err == nil {
				received = t.UTC()
			}
		}
	}
	msg.ReceivedAt = received.Format(time.RFC3339)
	return msg
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
