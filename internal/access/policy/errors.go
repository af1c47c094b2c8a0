// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package policy

import (
	"github.com/samber/oops"
)

// Error codes surfaced by the engine's mutating operations. Denial is not
// among them: a denied check is a normal Result, never an error.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeRoleNotFound       = "ROLE_NOT_FOUND"
	CodePermissionNotFound = "PERMISSION_NOT_FOUND"
	CodeAssignmentNotFound = "ASSIGNMENT_NOT_FOUND"
	CodeRoleConflict       = "ROLE_CONFLICT"
	CodePermissionConflict = "PERMISSION_CONFLICT"
	CodeAssignmentConflict = "ASSIGNMENT_CONFLICT"
)

// ValidationError wraps the validator's message list into a coded error.
// Hosts should map it to a 400-equivalent response.
func ValidationError(target string, problems []string) error {
	return oops.In("policy").
		Code(CodeValidationFailed).
		With("target", target).
		With("problems", problems).
		Errorf("%s failed validation", target)
}

// IsValidation reports whether err is a VALIDATION_FAILED error.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidationFailed)
}

// IsNotFound reports whether err carries one of the not-found codes.
// Hosts should map these to 404-equivalent responses, distinct from denial.
func IsNotFound(err error) bool {
	return hasCode(err, CodeRoleNotFound) ||
		hasCode(err, CodePermissionNotFound) ||
		hasCode(err, CodeAssignmentNotFound)
}

// IsConflict reports whether err carries one of the conflict codes
// (immutable system object, duplicate identity, role still assigned).
// Hosts should map these to 409-equivalent responses.
func IsConflict(err error) bool {
	return hasCode(err, CodeRoleConflict) ||
		hasCode(err, CodePermissionConflict) ||
		hasCode(err, CodeAssignmentConflict)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}
