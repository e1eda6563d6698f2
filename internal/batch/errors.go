package batch

import (
	"errors"
	"fmt"
)

// FatalError reports an inconsistency between the mapping and the
// database that no retry can fix. The batch stops at the first one.
type FatalError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Entity and Column locate the failure.
	Entity string
	Column string

	// Row is the index of the batch row being written.
	Row int
}

// ErrorCode categorizes fatal batch errors.
type ErrorCode string

const (
	// ErrCodeUnmappedLOBType indicates a LOB column type the dialect has no
	// empty value for.
	ErrCodeUnmappedLOBType ErrorCode = "UNMAPPED_LOB_TYPE"

	// ErrCodeLocatorRowMissing indicates the row just written could not be
	// selected back for its LOB locators.
	ErrCodeLocatorRowMissing ErrorCode = "LOCATOR_ROW_MISSING"

	// ErrCodeLocatorRowDuplicate indicates the locator select matched more
	// than one row.
	ErrCodeLocatorRowDuplicate ErrorCode = "LOCATOR_ROW_DUPLICATE"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s (entity=%s, column=%s, row=%d)", e.Code, e.Message, e.Entity, e.Column, e.Row)
	}
	return fmt.Sprintf("%s: %s (entity=%s, row=%d)", e.Code, e.Message, e.Entity, e.Row)
}

// IsFatal returns true if err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// HasCode returns true if err wraps a FatalError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
