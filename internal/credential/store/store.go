package store

import (
	"context"
	"time"

	"edureg/internal/credential/models"
	id "edureg/pkg/domain"
	pkgerrors "edureg/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")

	// ErrNotInitialized is returned when the registry has no owner recorded yet.
	ErrNotInitialized = pkgerrors.New(pkgerrors.CodeInternal, "registry not initialized")
)

// Tx is the view of registry state available inside a transaction.
// Every mutation made through a Tx becomes visible atomically when RunInTx returns nil.
type Tx interface {
	Registry(ctx context.Context) (models.Registry, error)
	FindCredential(ctx context.Context, credentialID id.CredentialID) (models.Credential, error)
	// InsertCredential assigns the next dense ID, stores the record and advances the count.
	InsertCredential(ctx context.Context, credential models.Credential) (id.CredentialID, error)
	// UpdateCredential persists the validity fields of an existing record.
	// Issued facts are immutable and are not rewritten.
	UpdateCredential(ctx context.Context, credential models.Credential) error
	IsAuthorized(ctx context.Context, identity id.Identity) (bool, error)
	AddInstitution(ctx context.Context, identity id.Identity, at time.Time) error
	RemoveInstitution(ctx context.Context, identity id.Identity) error
}

// Store owns the registry state.
type Store interface {
	// Initialize records owner on an empty store and authorizes it. On a store that
	// already has an owner it succeeds only if the owner matches.
	Initialize(ctx context.Context, owner id.Identity, at time.Time) error
	// RunInTx serializes fn against every other RunInTx call. If fn returns an
	// error, none of its writes are applied.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent snapshot. Writes through the Tx fail.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// ErrReadOnly is returned by write methods of a Tx handed out by View.
var ErrReadOnly = pkgerrors.New(pkgerrors.CodeInternal, "write attempted in read-only transaction")

// Option configures a Store implementation.
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithTxTimeout bounds how long a transaction may run when the caller set no deadline.
func WithTxTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// defaultTxTimeout is the maximum duration for a registry transaction.
const defaultTxTimeout = 5 * time.Second

// withTxTimeout applies the default timeout when the caller set no deadline.
func withTxTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func abortedErr(err error) error {
	return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
}
