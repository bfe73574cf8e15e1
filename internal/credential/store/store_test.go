package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"edureg/internal/credential/models"
	id "edureg/pkg/domain"
	dErrors "edureg/pkg/domain-errors"
)

const owner id.Identity = "did:example:owner"

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// StoreSuite is the behavioral contract shared by every Store implementation.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
	s.Require().NoError(s.store.Initialize(s.ctx, owner, issuedAt))
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store {
		return NewInMemoryStore()
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		return NewSQLite(setupTestDB(t))
	}})
}

func (s *StoreSuite) insert(name string) id.CredentialID {
	var credID id.CredentialID
	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		var err error
		credID, err = tx.InsertCredential(s.ctx, models.NewCredential(models.IssueRequest{
			StudentName:     name,
			CourseName:      "CS101",
			InstitutionName: "MIT",
			CredentialHash:  "hash-" + name,
		}, owner, issuedAt))
		return err
	})
	s.Require().NoError(err)
	return credID
}

func (s *StoreSuite) registry() models.Registry {
	var reg models.Registry
	s.Require().NoError(s.store.View(s.ctx, func(tx Tx) error {
		var err error
		reg, err = tx.Registry(s.ctx)
		return err
	}))
	return reg
}

func (s *StoreSuite) find(credID id.CredentialID) (models.Credential, error) {
	var c models.Credential
	err := s.store.View(s.ctx, func(tx Tx) error {
		var err error
		c, err = tx.FindCredential(s.ctx, credID)
		return err
	})
	return c, err
}

func (s *StoreSuite) authorized(identity id.Identity) bool {
	var ok bool
	s.Require().NoError(s.store.View(s.ctx, func(tx Tx) error {
		var err error
		ok, err = tx.IsAuthorized(s.ctx, identity)
		return err
	}))
	return ok
}

func (s *StoreSuite) TestInitialize() {
	s.Run("owner recorded and authorized", func() {
		reg := s.registry()
		s.Equal(owner, reg.Owner)
		s.Equal(uint64(0), reg.CredentialCount)
		s.True(s.authorized(owner))
	})

	s.Run("same owner is accepted again", func() {
		s.NoError(s.store.Initialize(s.ctx, owner, issuedAt.Add(time.Hour)))
	})

	s.Run("different owner is rejected", func() {
		err := s.store.Initialize(s.ctx, "did:example:intruder", issuedAt)
		s.ErrorIs(err, models.ErrOwnerMismatch)
		s.Equal(owner, s.registry().Owner)
	})
}

func (s *StoreSuite) TestUninitializedRegistry() {
	s.Run("fresh store has no owner", func() {
		fresh := s.newStore(s.T())
		err := fresh.View(s.ctx, func(tx Tx) error {
			_, err := tx.Registry(s.ctx)
			return err
		})
		s.ErrorIs(err, ErrNotInitialized)
	})
}

func (s *StoreSuite) TestInsertAssignsDenseIDs() {
	for want := id.CredentialID(1); want <= 5; want++ {
		s.Equal(want, s.insert("student"))
	}
	s.Equal(uint64(5), s.registry().CredentialCount)

	c, err := s.find(3)
	s.Require().NoError(err)
	s.Equal(id.CredentialID(3), c.ID)
	s.Equal("student", c.StudentName)
	s.Equal("CS101", c.CourseName)
	s.Equal("MIT", c.InstitutionName)
	s.Equal("hash-student", c.CredentialHash)
	s.Equal(owner, c.Issuer)
	s.True(c.IssueDate.Equal(issuedAt))
	s.True(c.IsValid)
	s.True(c.RevokedAt.IsZero())
}

func (s *StoreSuite) TestFindMissing() {
	s.insert("alice")

	for _, credID := range []id.CredentialID{0, 2, id.CredentialID(^uint64(0))} {
		_, err := s.find(credID)
		s.ErrorIs(err, ErrNotFound, "id %d", credID)
	}
}

func (s *StoreSuite) TestUpdateCredentialPersistsRevocation() {
	credID := s.insert("alice")
	revokedAt := issuedAt.Add(24 * time.Hour)

	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx Tx) error {
		c, err := tx.FindCredential(s.ctx, credID)
		if err != nil {
			return err
		}
		c, err = c.Revoke(revokedAt)
		if err != nil {
			return err
		}
		c.StudentName = "ignored"
		return tx.UpdateCredential(s.ctx, c)
	}))

	c, err := s.find(credID)
	s.Require().NoError(err)
	s.False(c.IsValid)
	s.True(c.RevokedAt.Equal(revokedAt))
	s.Equal("alice", c.StudentName, "issued facts are immutable")
}

func (s *StoreSuite) TestUpdateMissingCredential() {
	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		return tx.UpdateCredential(s.ctx, models.Credential{ID: 9})
	})
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestInstitutions() {
	const institution id.Identity = "did:example:uni"
	s.False(s.authorized(institution))

	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx Tx) error {
		return tx.AddInstitution(s.ctx, institution, issuedAt)
	}))
	s.True(s.authorized(institution))

	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx Tx) error {
		return tx.RemoveInstitution(s.ctx, institution)
	}))
	s.False(s.authorized(institution))
	s.True(s.authorized(owner))
}

func (s *StoreSuite) TestFailedTxLeavesNoEffect() {
	s.insert("alice")
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		if _, err := tx.InsertCredential(s.ctx, models.Credential{StudentName: "bob", IsValid: true}); err != nil {
			return err
		}
		c, err := tx.FindCredential(s.ctx, 1)
		if err != nil {
			return err
		}
		c, err = c.Revoke(issuedAt)
		if err != nil {
			return err
		}
		if err := tx.UpdateCredential(s.ctx, c); err != nil {
			return err
		}
		if err := tx.AddInstitution(s.ctx, "did:example:uni", issuedAt); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	s.Equal(uint64(1), s.registry().CredentialCount)
	c, err := s.find(1)
	s.Require().NoError(err)
	s.True(c.IsValid)
	_, err = s.find(2)
	s.ErrorIs(err, ErrNotFound)
	s.False(s.authorized("did:example:uni"))
}

func (s *StoreSuite) TestWritesVisibleWithinTx() {
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx Tx) error {
		first, err := tx.InsertCredential(s.ctx, models.Credential{StudentName: "a", IsValid: true})
		s.Require().NoError(err)
		second, err := tx.InsertCredential(s.ctx, models.Credential{StudentName: "b", IsValid: true})
		s.Require().NoError(err)
		s.Equal(first+1, second)

		c, err := tx.FindCredential(s.ctx, second)
		s.Require().NoError(err)
		s.Equal("b", c.StudentName)

		s.Require().NoError(tx.AddInstitution(s.ctx, "did:example:uni", issuedAt))
		ok, err := tx.IsAuthorized(s.ctx, "did:example:uni")
		s.Require().NoError(err)
		s.True(ok)
		return nil
	}))
	s.Equal(uint64(2), s.registry().CredentialCount)
}

func (s *StoreSuite) TestViewRejectsWrites() {
	err := s.store.View(s.ctx, func(tx Tx) error {
		_, err := tx.InsertCredential(s.ctx, models.Credential{})
		return err
	})
	s.ErrorIs(err, ErrReadOnly)
}

func (s *StoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	called := false
	err := s.store.RunInTx(ctx, func(Tx) error {
		called = true
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.False(called)
}
