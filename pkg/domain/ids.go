// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"
	"strings"

	dErrors "edureg/pkg/domain-errors"
)

// MaxIdentityLength bounds caller and institution identities accepted at trust boundaries.
const MaxIdentityLength = 256

// Identity names a party known to the registry: the owner, an issuing institution,
// or any other caller. It is opaque; comparison is exact.
type Identity string

// CredentialID is the dense, 1-based identifier assigned at issuance.
// Zero is never assigned and always means "absent".
type CredentialID uint64

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if len(s) > MaxIdentityLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity is too long")
	}
	return Identity(s), nil
}

// ParseCredentialID accepts an unsigned decimal. Zero parses successfully so the
// registry, not the transport, decides that it is absent.
func ParseCredentialID(s string) (CredentialID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "credential ID cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid credential ID format")
	}
	return CredentialID(v), nil
}

// String methods - for logging and debugging.

func (id Identity) String() string     { return string(id) }
func (id CredentialID) String() string { return strconv.FormatUint(uint64(id), 10) }

// IsNil checks - used for service-layer validation.

func (id Identity) IsNil() bool     { return id == "" }
func (id CredentialID) IsNil() bool { return id == 0 }
