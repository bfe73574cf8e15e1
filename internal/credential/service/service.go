package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"edureg/internal/credential/events"
	"edureg/internal/credential/metrics"
	"edureg/internal/credential/models"
	"edureg/internal/credential/store"
	"edureg/internal/platform/tracer"
	id "edureg/pkg/domain"
	dErrors "edureg/pkg/domain-errors"
	requesttime "edureg/pkg/platform/middleware/requesttime"
	"edureg/pkg/requestcontext"
)

// Operation names used for metrics labels.
const (
	opIssueCredential         = "issue_credential"
	opVerifyCredential        = "verify_credential"
	opGetCredential           = "get_credential"
	opRevokeCredential        = "revoke_credential"
	opAuthorizeInstitution    = "authorize_institution"
	opRevokeInstitutionAccess = "revoke_institution_access"
	opRegistryState           = "registry_state"
	opIsAuthorized            = "is_authorized"
)

// Option configures the registry service.
type Option func(*Service)

// Service is the credential registry. Every operation runs as one store
// transaction: all checks happen before any write, and a rejected call leaves
// no trace in the registry state. Notifications are published after commit, in
// commit order.
//
// The caller identity and the current time are read from the context.
type Service struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger

	// commitMu orders mutations together with their post-commit effects.
	commitMu sync.Mutex
}

// New creates a registry service over st.
func New(st store.Store, opts ...Option) *Service {
	svc := &Service{
		store:  st,
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithPublisher configures where registry notifications are delivered.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics configures Prometheus collectors for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer configures span creation for registry operations.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Bootstrap records owner as the registry owner and first authorized institution.
// On a registry that already has an owner it succeeds only if owner matches.
func (s *Service) Bootstrap(ctx context.Context, owner id.Identity) error {
	if owner.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}
	if err := s.store.Initialize(ctx, owner, requesttime.Now(ctx)); err != nil {
		return s.storeError(err, "failed to initialize registry")
	}
	reg, err := s.State(ctx)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetCredentialCount(reg.CredentialCount)
	}
	return nil
}

// IssueCredential records a new valid credential issued by the caller and returns its ID.
// The caller must be an authorized institution.
func (s *Service) IssueCredential(ctx context.Context, req models.IssueRequest) (credentialID id.CredentialID, err error) {
	caller := requestcontext.Caller(ctx)
	ctx, op := s.begin(ctx, opIssueCredential, tracer.SpanIssueCredential, tracer.String(tracer.AttrCaller, caller.String()))
	defer func() { op.end(err) }()

	now := requesttime.Now(ctx)
	err = s.mutate(ctx, func(tx store.Tx) error {
		if _, err := tx.Registry(ctx); err != nil {
			return err
		}
		if err := requireAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		newID, err := tx.InsertCredential(ctx, models.NewCredential(req, caller, now))
		if err != nil {
			return err
		}
		credentialID = newID
		return nil
	}, func() {
		if s.metrics != nil {
			s.metrics.IncrementCredentialsIssued()
			// IDs are dense, so the new ID is the committed count.
			s.metrics.SetCredentialCount(uint64(credentialID))
		}
		s.publish(ctx, op, events.CredentialIssued(credentialID, req.StudentName, req.CourseName, caller), now)
	})
	if err != nil {
		return 0, s.storeError(err, "failed to issue credential")
	}
	return credentialID, nil
}

// VerifyCredential returns the public status of a credential. Anyone may call it.
func (s *Service) VerifyCredential(ctx context.Context, credentialID id.CredentialID) (result *models.VerifyResult, err error) {
	ctx, op := s.begin(ctx, opVerifyCredential, tracer.SpanVerifyCredential, credentialAttr(credentialID))
	defer func() { op.end(err) }()

	credential, err := s.findCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	verified := credential.Verify()
	return &verified, nil
}

// GetCredential returns the full credential record, including its hash. Anyone may call it.
func (s *Service) GetCredential(ctx context.Context, credentialID id.CredentialID) (credential *models.Credential, err error) {
	ctx, op := s.begin(ctx, opGetCredential, tracer.SpanGetCredential, credentialAttr(credentialID))
	defer func() { op.end(err) }()

	found, err := s.findCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// RevokeCredential marks a credential invalid. Any authorized institution may
// revoke any credential, not only the ones it issued.
func (s *Service) RevokeCredential(ctx context.Context, credentialID id.CredentialID) (err error) {
	caller := requestcontext.Caller(ctx)
	ctx, op := s.begin(ctx, opRevokeCredential, tracer.SpanRevokeCredential,
		credentialAttr(credentialID),
		tracer.String(tracer.AttrCaller, caller.String()),
	)
	defer func() { op.end(err) }()

	now := requesttime.Now(ctx)
	err = s.mutate(ctx, func(tx store.Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if !reg.Contains(credentialID) {
			return models.ErrNotFound
		}
		if err := requireAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		credential, err := tx.FindCredential(ctx, credentialID)
		if err != nil {
			return err
		}
		revoked, err := credential.Revoke(now)
		if err != nil {
			return err
		}
		return tx.UpdateCredential(ctx, revoked)
	}, func() {
		if s.metrics != nil {
			s.metrics.IncrementCredentialsRevoked()
		}
		s.publish(ctx, op, events.CredentialRevoked(credentialID), now)
	})
	if err != nil {
		return s.storeError(err, "failed to revoke credential")
	}
	return nil
}

// AuthorizeInstitution lets identity issue and revoke credentials. Only the owner may call it.
func (s *Service) AuthorizeInstitution(ctx context.Context, identity id.Identity) (err error) {
	caller := requestcontext.Caller(ctx)
	ctx, op := s.begin(ctx, opAuthorizeInstitution, tracer.SpanAuthorizeInstitution,
		tracer.String(tracer.AttrIdentity, identity.String()),
		tracer.String(tracer.AttrCaller, caller.String()),
	)
	defer func() { op.end(err) }()

	if identity.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}

	now := requesttime.Now(ctx)
	err = s.mutate(ctx, func(tx store.Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if !reg.IsOwner(caller) {
			return models.ErrUnauthorized
		}
		authorized, err := tx.IsAuthorized(ctx, identity)
		if err != nil {
			return err
		}
		if authorized {
			return models.ErrAlreadyAuthorized
		}
		return tx.AddInstitution(ctx, identity, now)
	}, func() {
		if s.metrics != nil {
			s.metrics.IncrementInstitutionsAuthorized()
		}
		s.publish(ctx, op, events.InstitutionAuthorized(identity), now)
	})
	if err != nil {
		return s.storeError(err, "failed to authorize institution")
	}
	return nil
}

// RevokeInstitutionAccess removes identity from the authorized institutions.
// The owner's own access can never be revoked, whoever asks.
func (s *Service) RevokeInstitutionAccess(ctx context.Context, identity id.Identity) (err error) {
	caller := requestcontext.Caller(ctx)
	ctx, op := s.begin(ctx, opRevokeInstitutionAccess, tracer.SpanRevokeInstitutionAccess,
		tracer.String(tracer.AttrIdentity, identity.String()),
		tracer.String(tracer.AttrCaller, caller.String()),
	)
	defer func() { op.end(err) }()

	if identity.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}

	now := requesttime.Now(ctx)
	err = s.mutate(ctx, func(tx store.Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if identity == reg.Owner {
			return models.ErrCannotRevokeOwner
		}
		if !reg.IsOwner(caller) {
			return models.ErrUnauthorized
		}
		authorized, err := tx.IsAuthorized(ctx, identity)
		if err != nil {
			return err
		}
		if !authorized {
			return models.ErrNotAuthorized
		}
		return tx.RemoveInstitution(ctx, identity)
	}, func() {
		if s.metrics != nil {
			s.metrics.IncrementInstitutionsRevoked()
		}
		s.publish(ctx, op, events.InstitutionRevoked(identity), now)
	})
	if err != nil {
		return s.storeError(err, "failed to revoke institution access")
	}
	return nil
}

// State returns the owner and the last assigned credential ID as one consistent read.
func (s *Service) State(ctx context.Context) (reg models.Registry, err error) {
	ctx, op := s.begin(ctx, opRegistryState, tracer.SpanRegistryState)
	defer func() { op.end(err) }()

	err = s.store.View(ctx, func(tx store.Tx) error {
		reg, err = tx.Registry(ctx)
		return err
	})
	if err != nil {
		return models.Registry{}, s.storeError(err, "failed to read registry")
	}
	return reg, nil
}

// Owner returns the registry owner.
func (s *Service) Owner(ctx context.Context) (id.Identity, error) {
	reg, err := s.State(ctx)
	if err != nil {
		return "", err
	}
	return reg.Owner, nil
}

// CredentialCount returns the last assigned credential ID.
func (s *Service) CredentialCount(ctx context.Context) (uint64, error) {
	reg, err := s.State(ctx)
	if err != nil {
		return 0, err
	}
	return reg.CredentialCount, nil
}

// IsAuthorized reports whether identity may issue and revoke credentials.
func (s *Service) IsAuthorized(ctx context.Context, identity id.Identity) (authorized bool, err error) {
	ctx, op := s.begin(ctx, opIsAuthorized, tracer.SpanRegistryState, tracer.String(tracer.AttrIdentity, identity.String()))
	defer func() { op.end(err) }()

	err = s.store.View(ctx, func(tx store.Tx) error {
		authorized, err = tx.IsAuthorized(ctx, identity)
		return err
	})
	if err != nil {
		return false, s.storeError(err, "failed to read authorization")
	}
	return authorized, nil
}

// mutate runs fn in a write transaction and, once it has committed, runs
// committed before any later mutation can commit. Publishers must not block.
func (s *Service) mutate(ctx context.Context, fn func(tx store.Tx) error, committed func()) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.store.RunInTx(ctx, fn); err != nil {
		return err
	}
	committed()
	return nil
}

func (s *Service) findCredential(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	var credential models.Credential
	err := s.store.View(ctx, func(tx store.Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if !reg.Contains(credentialID) {
			return models.ErrNotFound
		}
		credential, err = tx.FindCredential(ctx, credentialID)
		return err
	})
	if err != nil {
		return models.Credential{}, s.storeError(err, "failed to read credential")
	}
	return credential, nil
}

func requireAuthorized(ctx context.Context, tx store.Tx, caller id.Identity) error {
	if caller.IsNil() {
		return models.ErrUnauthorized
	}
	authorized, err := tx.IsAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return models.ErrUnauthorized
	}
	return nil
}

// storeError keeps domain errors as they are and wraps anything else as internal.
func (s *Service) storeError(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrNotFound
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// operation tracks one registry call for tracing and metrics.
type operation struct {
	svc   *Service
	ctx   context.Context
	name  string
	start time.Time
	span  tracer.Span
}

func (s *Service) begin(ctx context.Context, name, spanName string, attrs ...tracer.Attribute) (context.Context, *operation) {
	ctx, span := s.tracer.Start(ctx, spanName, attrs...)
	return ctx, &operation{svc: s, ctx: ctx, name: name, start: time.Now(), span: span}
}

func (o *operation) end(err error) {
	m := o.svc.metrics
	if err != nil {
		reason := models.RejectionReason(err)
		o.span.SetAttributes(tracer.String(tracer.AttrRejection, reason))
		if m != nil {
			m.IncrementRejected(o.name, reason)
		}
		if dErrors.HasCode(err, dErrors.CodeInternal) && o.svc.logger != nil {
			o.svc.logger.ErrorContext(o.ctx, "registry operation failed",
				"operation", o.name,
				"error", err,
				"request_id", requestcontext.RequestID(o.ctx),
			)
		}
	}
	if m != nil {
		m.ObserveOperationLatency(o.name, time.Since(o.start).Seconds())
	}
	o.span.End(err)
}

func (s *Service) publish(ctx context.Context, op *operation, event events.Event, occurredAt time.Time) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = occurredAt
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Publish(ctx, event); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to publish registry event",
				"error", err,
				"event", string(event.Kind),
				"request_id", event.RequestID,
			)
		}
		return
	}
	op.span.AddEvent(tracer.EventPublished, tracer.String("event", string(event.Kind)))
}

func credentialAttr(credentialID id.CredentialID) tracer.Attribute {
	return tracer.Attribute{Key: tracer.AttrCredentialID, Value: uint64(credentialID)}
}
