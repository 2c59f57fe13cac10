// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes for rejected plugin candidates.
const (
	CodeManifestInvalid    = "MANIFEST_INVALID"
	CodeIncompatible       = "HOST_INCOMPATIBLE"
	CodeEntryPointMissing  = "ENTRY_POINT_MISSING"
	CodeRuntimeUnavailable = "RUNTIME_UNAVAILABLE"
	CodeLoadFailed         = "LOAD_FAILED"
	CodeNoExport           = "NO_PLUGIN_EXPORT"
	CodeInvalidInstance    = "INVALID_INSTANCE"
	CodeActivateFailed     = "ACTIVATE_FAILED"
	CodeDeactivateFailed   = "DEACTIVATE_FAILED"
	CodeDuplicate          = "DUPLICATE"
	CodeRootUnreadable     = "ROOT_UNREADABLE"
)

// Registry sentinel errors.
var (
	// ErrAlreadyRegistered is returned when registering an id that is already present.
	ErrAlreadyRegistered = errors.New("plugin already registered")
	// ErrNotFound is returned when looking up an unknown id.
	ErrNotFound = errors.New("plugin not found")
)

// ErrEntryPointMissing creates an error for an entry point that does not exist.
func ErrEntryPointMissing(id, path string) error {
	return oops.In("plugin").
		Code(CodeEntryPointMissing).
		With("plugin", id).
		With("path", path).
		Errorf("entry point missing: %s", path)
}

// ErrRuntimeUnavailable creates an error for a runtime the loader was not
// configured with. available lists the kinds it was configured with.
func ErrRuntimeUnavailable(id string, kind RuntimeKind, available []RuntimeKind) error {
	names := make([]string, len(available))
	for i, k := range available {
		names[i] = string(k)
	}
	return oops.In("plugin").
		Code(CodeRuntimeUnavailable).
		With("plugin", id).
		With("runtime", string(kind)).
		With("available", strings.Join(names, ", ")).
		Errorf("no %q runtime configured (available: %s)", kind, strings.Join(names, ", "))
}

// ErrLoadFailed wraps an import or construction failure.
func ErrLoadFailed(id string, cause error) error {
	return oops.In("plugin").
		Code(CodeLoadFailed).
		With("plugin", id).
		Wrapf(cause, "load plugin %s", id)
}

// ErrNoExport creates an error for an entry point without a default or named export.
func ErrNoExport(id string) error {
	return oops.In("plugin").
		Code(CodeNoExport).
		With("plugin", id).
		Errorf("no plugin export found")
}

// ErrInvalidInstance creates an error for an instance that fails the structural check.
func ErrInvalidInstance(id, reason string) error {
	return oops.In("plugin").
		Code(CodeInvalidInstance).
		With("plugin", id).
		With("reason", reason).
		Errorf("invalid plugin instance: %s", reason)
}

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() == nil {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}

// panicError converts a recovered panic value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
