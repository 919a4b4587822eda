package providers

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/resend/resend-go/v2"
)

// resendBatchLimit is the Resend batch API cap per call.
const resendBatchLimit = 100

// ResendAdapter sends through the Resend transactional API. One email
// per recipient so every delivery gets its own message id for webhook
// correlation.
type ResendAdapter struct {
	client *resend.Client
}

func NewResendAdapter(apiKey string) *ResendAdapter {
	return &ResendAdapter{client: resend.NewClient(apiKey)}
}

func (a *ResendAdapter) Name() string             { return "resend" }
func (a *ResendAdapter) SupportsScheduling() bool { return true }
func (a *ResendAdapter) BatchLimit() int          { return resendBatchLimit }

func (a *ResendAdapter) Send(ctx context.Context, in *SendInput) (*SendOutput, error) {
	out := &SendOutput{}

	var params []*resend.SendEmailRequest
	var batched []Recipient
	for _, rcpt := range in.Recipients {
		if _, err := mail.ParseAddress(rcpt.Email); err != nil {
			out.Rejected = append(out.Rejected, Rejection{
				DeliveryID: rcpt.DeliveryID,
				Email:      rcpt.Email,
				Reason:     "invalid email address",
			})
			continue
		}
		p := &resend.SendEmailRequest{
			From:    in.FromEmail,
			To:      []string{rcpt.Email},
			Subject: in.Subject,
			Html:    in.HTML,
		}
		if in.ReplyTo != "" {
			p.ReplyTo = in.ReplyTo
		}
		params = append(params, p)
		batched = append(batched, rcpt)
	}

	if len(params) == 0 {
		return out, nil
	}

	resp, err := a.client.Batch.SendWithContext(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("resend batch send failed: %w", err)
	}
	if len(resp.Data) != len(batched) {
		return nil, fmt.Errorf("resend returned %d results for %d emails", len(resp.Data), len(batched))
	}

	for i, item := range resp.Data {
		out.Accepted = append(out.Accepted, Acceptance{
			DeliveryID:        batched[i].DeliveryID,
			Email:             batched[i].Email,
			ProviderMessageID: item.Id,
		})
	}

	logger.Info("resend batch sent",
		"newsletter_id", in.NewsletterID,
		"accepted", len(out.Accepted),
		"rejected", len(out.Rejected))

	return out, nil
}
