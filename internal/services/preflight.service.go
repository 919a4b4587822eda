package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/providers"
)

type NewsletterRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Newsletter, error)
}

type ContactRepository interface {
	ResolveAudience(ctx context.Context, clientID int64, tag string) ([]*model.Contact, error)
	ResolveEmails(ctx context.Context, clientID int64, emails []string) ([]*model.Contact, error)
	MarkUnsubscribed(ctx context.Context, contactID int64) error
}

type SendingIdentityRepository interface {
	GetByID(ctx context.Context, id int64) (*model.SendingIdentity, error)
	GetByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error)
}

// PreflightRequest asks whether a newsletter could be sent right now
// with the given parameters.
type PreflightRequest struct {
	NewsletterID int64
	Provider     string
	AudienceTag  string
	ScheduledFor *time.Time
}

// PreflightService evaluates send readiness. Evaluation is read only
// and never persisted: the report reflects this moment and submitting
// the send re-checks everything anyway.
type PreflightService struct {
	newsletters NewsletterRepository
	contacts    ContactRepository
	identities  SendingIdentityRepository
	adapters    *providers.Registry
}

func NewPreflightService(
	newsletters NewsletterRepository,
	contacts ContactRepository,
	identities SendingIdentityRepository,
	adapters *providers.Registry,
) *PreflightService {
	return &PreflightService{
		newsletters: newsletters,
		contacts:    contacts,
		identities:  identities,
		adapters:    adapters,
	}
}

func (s *PreflightService) Evaluate(ctx context.Context, req PreflightRequest) (*model.QAReport, error) {
	newsletter, err := s.newsletters.GetByID(ctx, req.NewsletterID)
	if err != nil {
		return nil, err
	}

	report := &model.QAReport{}

	if strings.TrimSpace(newsletter.Subject) == "" {
		report.AddBlocker(model.BlockerMissingSubject, "newsletter has no subject line")
	}
	if strings.TrimSpace(newsletter.FromEmail) == "" {
		report.AddBlocker(model.BlockerMissingFromEmail, "newsletter has no from address")
	}
	if strings.TrimSpace(newsletter.ReplyTo) == "" {
		report.AddBlocker(model.BlockerMissingReplyTo, "newsletter has no reply-to address")
	}
	if !newsletter.Sendable() {
		report.AddBlocker(model.BlockerNewsletterNotApproved,
			fmt.Sprintf("newsletter is %s, it must be approved before sending", newsletter.Status))
	}

	adapter, err := s.adapters.Get(req.Provider)
	if err != nil {
		report.AddBlocker(model.BlockerUnknownProvider,
			fmt.Sprintf("no adapter registered for provider %q", req.Provider))
	} else if req.ScheduledFor != nil && !adapter.SupportsScheduling() {
		report.AddBlocker(model.BlockerSchedulingUnsupported,
			fmt.Sprintf("provider %q cannot schedule sends for later", adapter.Name()))
	}

	audienceTag := req.AudienceTag
	if audienceTag == "" {
		audienceTag = model.AudienceTagAll
	}
	audience, err := s.contacts.ResolveAudience(ctx, newsletter.ClientID, audienceTag)
	if err != nil {
		return nil, err
	}
	report.RecipientsCount = len(audience)
	if len(audience) == 0 {
		report.AddBlocker(model.BlockerNoRecipients,
			fmt.Sprintf("audience %q resolved to zero active recipients", audienceTag))
	}

	identity, err := s.identities.GetByClient(ctx, newsletter.ClientID)
	if err == nil {
		if identity.QualityState == model.QualityPaused {
			report.AddBlocker(model.BlockerIdentityPaused,
				"sending identity is paused: "+identity.AutoPauseReason)
		}
		if identity.VerificationState != model.VerificationVerified {
			report.AddWarning(model.WarningDomainUnverified,
				fmt.Sprintf("sending domain %q is %s", identity.SendingDomain, identity.VerificationState))
		}
		if identity.SendingDomain != "" && !fromMatchesDomain(newsletter.FromEmail, identity.SendingDomain) {
			report.AddWarning(model.WarningFromDomainMismatch,
				fmt.Sprintf("from address %q is not on sending domain %q", newsletter.FromEmail, identity.SendingDomain))
		}
	}

	report.CanSend = len(report.Blockers) == 0
	return report, nil
}

func fromMatchesDomain(fromEmail, domain string) bool {
	at := strings.LastIndex(fromEmail, "@")
	if at < 0 {
		return false
	}
	return strings.EqualFold(fromEmail[at+1:], domain)
}
