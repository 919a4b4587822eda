package model

// Blocker codes. A blocker prevents the send outright.
const (
	BlockerMissingSubject        = "missing_subject"
	BlockerMissingFromEmail      = "missing_from_email"
	BlockerMissingReplyTo        = "missing_reply_to"
	BlockerNoRecipients          = "no_recipients"
	BlockerIdentityPaused        = "identity_paused"
	BlockerNewsletterNotApproved = "newsletter_not_approved"
	BlockerSchedulingUnsupported = "scheduling_unsupported"
	BlockerUnknownProvider       = "unknown_provider"
)

// Warning codes. Warnings are advisory; the send may proceed.
const (
	WarningDomainUnverified   = "sender_domain_unverified"
	WarningFromDomainMismatch = "from_domain_mismatch"
)

type QAIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QAReport is the result of a preflight evaluation. It is computed fresh
// on every call and never persisted: audience size and identity health
// can change between calls.
type QAReport struct {
	Blockers        []QAIssue `json:"blockers"`
	Warnings        []QAIssue `json:"warnings"`
	RecipientsCount int       `json:"recipients_count"`
	CanSend         bool      `json:"can_send"`
}

func (r *QAReport) AddBlocker(code, message string) {
	r.Blockers = append(r.Blockers, QAIssue{Code: code, Message: message})
}

func (r *QAReport) AddWarning(code, message string) {
	r.Warnings = append(r.Warnings, QAIssue{Code: code, Message: message})
}
