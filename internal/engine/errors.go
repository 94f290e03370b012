package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes batch-fatal migration errors.
type ErrorCode string

const (
	// ErrCodeDuplicateName indicates a displayName collision that makes
	// name-based service-principal matching ambiguous.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeMissingMapping indicates a required mapping log is absent.
	ErrCodeMissingMapping ErrorCode = "MISSING_MAPPING"

	// ErrCodeDependencyCycle indicates the exported groups reference
	// each other cyclically, so no membership order exists.
	ErrCodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
)

// MigrateError is a batch-fatal error: a precondition violated before
// any mutation. Per-item API failures never take this form; they go to
// the error log and the batch continues.
type MigrateError struct {
	Code    ErrorCode
	Message string
	Kind    string
	Key     string
}

func (e *MigrateError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (kind=%s, key=%s)", e.Code, e.Message, e.Kind, e.Key)
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBatchFatal reports whether err is (or wraps) a MigrateError.
func IsBatchFatal(err error) bool {
	var me *MigrateError
	return errors.As(err, &me)
}

// IsDuplicateName reports whether err is a duplicate-name precondition
// failure. Uses errors.As to handle wrapped errors.
func IsDuplicateName(err error) bool {
	var me *MigrateError
	if errors.As(err, &me) {
		return me.Code == ErrCodeDuplicateName
	}
	return false
}

// IsDependencyCycle reports whether err is a group dependency cycle.
func IsDependencyCycle(err error) bool {
	var me *MigrateError
	if errors.As(err, &me) {
		return me.Code == ErrCodeDependencyCycle
	}
	return false
}

// NewDuplicateNameError creates the batch-fatal error for a
// service-principal name collision.
func NewDuplicateNameError(kind, key, where string) *MigrateError {
	return &MigrateError{
		Code:    ErrCodeDuplicateName,
		Message: fmt.Sprintf("duplicate display name in %s", where),
		Kind:    kind,
		Key:     key,
	}
}

// NewMissingMappingError creates the batch-fatal error for an absent
// mapping log that an operation requires.
func NewMissingMappingError(kind, log string) *MigrateError {
	return &MigrateError{
		Code:    ErrCodeMissingMapping,
		Message: fmt.Sprintf("required mapping log %s does not exist; run the import first", log),
		Kind:    kind,
	}
}

// NewDependencyCycleError creates the batch-fatal error for a cyclic
// group dependency graph.
func NewDependencyCycleError(groups []string) *MigrateError {
	return &MigrateError{
		Code:    ErrCodeDependencyCycle,
		Message: fmt.Sprintf("group membership references form a cycle: %v", groups),
		Kind:    groupsKind,
	}
}
