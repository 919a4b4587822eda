package providers

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Recipient is one target of a batch send, carrying the delivery ledger
// row id so results can be recorded against it.
type Recipient struct {
	DeliveryID int64
	Email      string
}

// SendInput is a single batch handed to an adapter. Recipient count is
// bounded by the adapter's BatchLimit.
type SendInput struct {
	NewsletterID int64
	Subject      string
	FromEmail    string
	ReplyTo      string
	HTML         string
	Recipients   []Recipient
}

type Acceptance struct {
	DeliveryID        int64
	Email             string
	ProviderMessageID string
}

type Rejection struct {
	DeliveryID int64
	Email      string
	Reason     string
}

// SendOutput reports per-recipient acceptance. Document is set by
// export-style adapters that produce an artifact instead of calling a
// transport.
type SendOutput struct {
	Accepted []Acceptance
	Rejected []Rejection
	Document []byte
}

// Adapter is the transport contract. New transports are added by
// implementing this interface and registering it; the job and delivery
// ledgers never branch on the concrete type.
type Adapter interface {
	Name() string
	SupportsScheduling() bool
	BatchLimit() int
	Send(ctx context.Context, in *SendInput) (*SendOutput, error)
}

// Registry resolves adapters by the provider name stored on jobs and
// sending identities.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return a, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.adapters[name]
	return ok
}
