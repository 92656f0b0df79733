package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ValidationError rejects a write before it reaches the store. Field names
// the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError for the given field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError is a uniqueness violation, surfaced distinctly from generic
// validation so callers can retry (order number) or report "already exists"
// (SKU, barcode, email).
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Not-found sentinels for single-record and sub-document operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrAddressNotFound = errors.New("address not found")
)

// ErrInsufficientStock is returned when an order asks for more units than a
// product or variant has on hand.
var ErrInsufficientStock = errors.New("insufficient stock")

// IsNotFound reports whether err is any of the not-found conditions.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}

// ErrorClass buckets store errors for retry decisions.
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// ClassifyError maps a store error to its retry class.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03", "57P03", "08006", "08003":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the operation that produced err may be retried.
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique-index violation,
// regardless of dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// sqlite (tests) reports "UNIQUE constraint failed: table.column".
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UniqueViolationOn reports whether err is a unique violation involving the
// named column or constraint.
func UniqueViolationOn(err error, column string) bool {
	if !IsUniqueViolation(err) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.Contains(pqErr.Constraint, column) ||
			strings.Contains(pqErr.Detail, column)
	}

	return strings.Contains(err.Error(), column)
}
