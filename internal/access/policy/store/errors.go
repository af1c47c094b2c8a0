// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package store

import (
	"github.com/samber/oops"
)

// Error codes shared by all Store adapters.
const (
	CodeRoleNotFound       = "ROLE_NOT_FOUND"
	CodeAssignmentNotFound = "ASSIGNMENT_NOT_FOUND"
	CodeRoleConflict       = "ROLE_CONFLICT"
	CodePermissionConflict = "PERMISSION_CONFLICT"
	CodeAssignmentConflict = "ASSIGNMENT_CONFLICT"
)

// IsNotFound reports whether the error is a not-found error from a Store.
func IsNotFound(err error) bool {
	return hasCode(err, CodeRoleNotFound) || hasCode(err, CodeAssignmentNotFound)
}

// IsConflict reports whether the error is a uniqueness or immutability
// conflict from a Store.
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
