package validation

import (
	"fmt"
	"unicode/utf8"

	dErrors "edureg/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// String element length limits, measured in characters.
const (
	// MaxNameLength bounds student, course and institution names.
	MaxNameLength = 512

	// MaxCredentialHashLength bounds the document fingerprint supplied by the issuer.
	MaxCredentialHashLength = 256
)

// CheckStringLength validates that a string does not exceed the maximum number of characters.
func CheckStringLength(fieldName, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength applies CheckStringLength to a set of named fields.
// The first violation wins, in the order the fields are given.
func CheckEachStringLength(fields [][2]string, max int) error {
	for _, f := range fields {
		if err := CheckStringLength(f[0], f[1], max); err != nil {
			return err
		}
	}
	return nil
}
