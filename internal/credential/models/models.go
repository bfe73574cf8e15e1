package models

import (
	"time"

	id "edureg/pkg/domain"
)

// Credential is the registry record for one issued credential.
// Only a reference hash of the underlying document is kept.
type Credential struct {
	ID              id.CredentialID
	StudentName     string
	CourseName      string
	InstitutionName string
	CredentialHash  string
	Issuer          id.Identity
	IssueDate       time.Time
	IsValid         bool
	RevokedAt       time.Time
}

// IssueRequest carries the free-form credential facts supplied by the issuer.
type IssueRequest struct {
	StudentName     string
	CourseName      string
	InstitutionName string
	CredentialHash  string
}

// NewCredential builds a valid, not yet numbered credential issued by issuer at now.
func NewCredential(req IssueRequest, issuer id.Identity, now time.Time) Credential {
	return Credential{
		StudentName:     req.StudentName,
		CourseName:      req.CourseName,
		InstitutionName: req.InstitutionName,
		CredentialHash:  req.CredentialHash,
		Issuer:          issuer,
		IssueDate:       now,
		IsValid:         true,
	}
}

// Revoke returns the credential marked invalid at the given time.
// A credential can be revoked once; there is no way back to valid.
func (c Credential) Revoke(at time.Time) (Credential, error) {
	if !c.IsValid {
		return c, ErrAlreadyRevoked
	}
	c.IsValid = false
	c.RevokedAt = at
	return c, nil
}

// IsRevoked reports whether the credential has been invalidated.
func (c Credential) IsRevoked() bool {
	return !c.IsValid
}

// VerifyResult is the public status of a credential: every field except the hash.
type VerifyResult struct {
	IsValid         bool
	StudentName     string
	CourseName      string
	InstitutionName string
	IssueDate       time.Time
}

// Verify projects the credential onto its verification tuple.
func (c Credential) Verify() VerifyResult {
	return VerifyResult{
		IsValid:         c.IsValid,
		StudentName:     c.StudentName,
		CourseName:      c.CourseName,
		InstitutionName: c.InstitutionName,
		IssueDate:       c.IssueDate,
	}
}

// Registry is the registry-wide state: the fixed owner and the last assigned credential ID.
type Registry struct {
	Owner           id.Identity
	CredentialCount uint64
}

// Contains reports whether credentialID falls in the assigned range [1, CredentialCount].
func (r Registry) Contains(credentialID id.CredentialID) bool {
	return credentialID >= 1 && uint64(credentialID) <= r.CredentialCount
}

// NextID is the identifier the next issuance will receive.
func (r Registry) NextID() id.CredentialID {
	return id.CredentialID(r.CredentialCount + 1)
}

// IsOwner reports whether identity is the registry owner.
func (r Registry) IsOwner(identity id.Identity) bool {
	return !identity.IsNil() && identity == r.Owner
}
