package models

import (
	dErrors "edureg/pkg/domain-errors"
)

// Registry rejections. Each aborts the call with no effect; errors.Is matches by code,
// so wrapped or re-created errors with the same code compare equal.
var (
	ErrUnauthorized      = dErrors.New(dErrors.CodeForbidden, "caller is not permitted to perform this operation")
	ErrNotFound          = dErrors.New(dErrors.CodeNotFound, "credential not found")
	ErrAlreadyRevoked    = dErrors.New(dErrors.CodeAlreadyRevoked, "credential already revoked")
	ErrAlreadyAuthorized = dErrors.New(dErrors.CodeAlreadyAuthorized, "institution already authorized")
	ErrNotAuthorized     = dErrors.New(dErrors.CodeNotAuthorized, "institution is not authorized")
	ErrCannotRevokeOwner = dErrors.New(dErrors.CodeCannotRevokeOwner, "owner access cannot be revoked")
	ErrOwnerMismatch     = dErrors.New(dErrors.CodeOwnerMismatch, "registry already has a different owner")
)

// RejectionReason names a rejection for metrics labels and log fields.
func RejectionReason(err error) string {
	return string(dErrors.CodeOf(err))
}
