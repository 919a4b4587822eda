package providers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ExportAdapter performs no network call. It renders the newsletter into
// a single HTML document for manual distribution and synthesizes message
// ids so the delivery ledger stays uniform. Scheduling is meaningless
// for a manual export, so SupportsScheduling is always false and the
// evaluator treats a scheduled export as a blocker.
type ExportAdapter struct{}

func NewExportAdapter() *ExportAdapter { return &ExportAdapter{} }

func (a *ExportAdapter) Name() string             { return "html_export" }
func (a *ExportAdapter) SupportsScheduling() bool { return false }
func (a *ExportAdapter) BatchLimit() int          { return 10_000 }

func (a *ExportAdapter) Send(ctx context.Context, in *SendInput) (*SendOutput, error) {
	var doc bytes.Buffer
	doc.WriteString("<!-- exported newsletter -->\n")
	fmt.Fprintf(&doc, "<!-- subject: %s -->\n", in.Subject)
	fmt.Fprintf(&doc, "<!-- from: %s -->\n", in.FromEmail)
	fmt.Fprintf(&doc, "<!-- recipients: %d -->\n", len(in.Recipients))
	doc.WriteString(in.HTML)

	out := &SendOutput{Document: doc.Bytes()}
	for _, rcpt := range in.Recipients {
		out.Accepted = append(out.Accepted, Acceptance{
			DeliveryID:        rcpt.DeliveryID,
			Email:             rcpt.Email,
			ProviderMessageID: "export-" + uuid.NewString(),
		})
	}
	return out, nil
}
