package store

import (
	"context"
	"sync"
	"time"

	"edureg/internal/credential/models"
	id "edureg/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// A single registry-wide lock serializes transactions; it does not persist across restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	owner       id.Identity
	credentials []models.Credential // credentials[i] has ID i+1
	authorized  map[id.Identity]time.Time
	timeout     time.Duration
}

// NewInMemoryStore constructs an empty in-memory registry store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	return &InMemoryStore{
		authorized: make(map[id.Identity]time.Time),
		timeout:    applyOptions(opts).timeout,
	}
}

func (s *InMemoryStore) Initialize(ctx context.Context, owner id.Identity, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owner.IsNil() {
		if s.owner != owner {
			return models.ErrOwnerMismatch
		}
		return nil
	}
	s.owner = owner
	s.authorized[owner] = at
	return nil
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}
	ctx, cancel := withTxTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}

	tx := &memoryTx{store: s, writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *InMemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{store: s})
}

// memoryTx stages writes and applies them on commit so that a failing fn leaves
// the store untouched.
type memoryTx struct {
	store    *InMemoryStore
	writable bool

	inserted []models.Credential
	updated  map[id.CredentialID]models.Credential
	added    map[id.Identity]time.Time
	removed  map[id.Identity]struct{}
}

func (t *memoryTx) Registry(_ context.Context) (models.Registry, error) {
	if t.store.owner.IsNil() {
		return models.Registry{}, ErrNotInitialized
	}
	return models.Registry{
		Owner:           t.store.owner,
		CredentialCount: uint64(len(t.store.credentials) + len(t.inserted)),
	}, nil
}

func (t *memoryTx) FindCredential(_ context.Context, credentialID id.CredentialID) (models.Credential, error) {
	if c, ok := t.updated[credentialID]; ok {
		return c, nil
	}
	committed := uint64(len(t.store.credentials))
	n := uint64(credentialID)
	switch {
	case n >= 1 && n <= committed:
		return t.store.credentials[n-1], nil
	case n > committed && n <= committed+uint64(len(t.inserted)):
		return t.inserted[n-committed-1], nil
	}
	return models.Credential{}, ErrNotFound
}

func (t *memoryTx) InsertCredential(ctx context.Context, credential models.Credential) (id.CredentialID, error) {
	if !t.writable {
		return 0, ErrReadOnly
	}
	reg, err := t.Registry(ctx)
	if err != nil {
		return 0, err
	}
	credential.ID = reg.NextID()
	t.inserted = append(t.inserted, credential)
	return credential.ID, nil
}

func (t *memoryTx) UpdateCredential(ctx context.Context, credential models.Credential) error {
	if !t.writable {
		return ErrReadOnly
	}
	current, err := t.FindCredential(ctx, credential.ID)
	if err != nil {
		return err
	}
	current.IsValid = credential.IsValid
	current.RevokedAt = credential.RevokedAt
	if t.updated == nil {
		t.updated = make(map[id.CredentialID]models.Credential)
	}
	t.updated[credential.ID] = current
	return nil
}

func (t *memoryTx) IsAuthorized(_ context.Context, identity id.Identity) (bool, error) {
	if _, ok := t.removed[identity]; ok {
		return false, nil
	}
	if _, ok := t.added[identity]; ok {
		return true, nil
	}
	_, ok := t.store.authorized[identity]
	return ok, nil
}

func (t *memoryTx) AddInstitution(_ context.Context, identity id.Identity, at time.Time) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.added == nil {
		t.added = make(map[id.Identity]time.Time)
	}
	delete(t.removed, identity)
	t.added[identity] = at
	return nil
}

func (t *memoryTx) RemoveInstitution(_ context.Context, identity id.Identity) error {
	if !t.writable {
		return ErrReadOnly
	}
	if t.removed == nil {
		t.removed = make(map[id.Identity]struct{})
	}
	delete(t.added, identity)
	t.removed[identity] = struct{}{}
	return nil
}

// commit runs with the store lock held.
func (t *memoryTx) commit() {
	s := t.store
	// Inserts first: updated may refer to a credential inserted in this tx.
	s.credentials = append(s.credentials, t.inserted...)
	for credID, c := range t.updated {
		s.credentials[credID-1] = c
	}
	for identity := range t.removed {
		delete(s.authorized, identity)
	}
	for identity, at := range t.added {
		s.authorized[identity] = at
	}
}
