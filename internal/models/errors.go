package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrEmptyRecord    = errors.New("record has no fields set")
	ErrNoRecords      = errors.New("records are required")
	ErrTooManyRecords = errors.New("too many records")
)

// Sentinel errors for lookups.
var (
	ErrOwnerNotFound  = errors.New("owner not found")
	ErrRecordNotFound = errors.New("credential not found")
)

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
