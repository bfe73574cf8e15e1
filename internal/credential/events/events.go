package events

import (
	"context"
	"errors"
	"time"

	id "edureg/pkg/domain"
)

// Kind names a registry notification.
type Kind string

const (
	KindCredentialIssued      Kind = "credential_issued"
	KindCredentialRevoked     Kind = "credential_revoked"
	KindInstitutionAuthorized Kind = "institution_authorized"
	KindInstitutionRevoked    Kind = "institution_revoked"
)

// Event is emitted after a registry mutation commits. Keep it transport-agnostic
// so sinks can fan out. Fields not relevant to a Kind are zero.
type Event struct {
	Kind         Kind
	CredentialID id.CredentialID
	StudentName  string
	CourseName   string
	// Identity is the issuer for credential_issued and the affected institution
	// for institution_* events.
	Identity   id.Identity
	OccurredAt time.Time
	RequestID  string
}

// CredentialIssued builds the notification for a new credential.
func CredentialIssued(credentialID id.CredentialID, studentName, courseName string, issuer id.Identity) Event {
	return Event{
		Kind:         KindCredentialIssued,
		CredentialID: credentialID,
		StudentName:  studentName,
		CourseName:   courseName,
		Identity:     issuer,
	}
}

// CredentialRevoked builds the notification for a revoked credential.
func CredentialRevoked(credentialID id.CredentialID) Event {
	return Event{Kind: KindCredentialRevoked, CredentialID: credentialID}
}

// InstitutionAuthorized builds the notification for a newly authorized issuer.
func InstitutionAuthorized(identity id.Identity) Event {
	return Event{Kind: KindInstitutionAuthorized, Identity: identity}
}

// InstitutionRevoked builds the notification for an issuer whose access was removed.
func InstitutionRevoked(identity id.Identity) Event {
	return Event{Kind: KindInstitutionRevoked, Identity: identity}
}

// Publisher receives registry notifications.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout delivers each event to every publisher in order. A failing publisher
// does not stop delivery to the rest; all errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

var (
	_ Publisher = Fanout(nil)
	_ Publisher = PublisherFunc(nil)
)

// ErrPublisherClosed is returned when publishing to a closed Async publisher.
var ErrPublisherClosed = errors.New("event publisher closed")
