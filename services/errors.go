package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindTableInactive      Kind = "TableInactive"
	KindDuplicateKey       Kind = "DuplicateKey"
	KindInsufficientPoints Kind = "InsufficientPoints"
	KindValidationFailed   Kind = "ValidationFailed"
	KindUnauthorized       Kind = "Unauthorized"
)

// Error carries a Kind and a human readable message. errors.Is matches on
// Kind alone, so callers compare against the sentinel values below.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrTableInactive      = &Error{Kind: KindTableInactive}
	ErrDuplicateKey       = &Error{Kind: KindDuplicateKey}
	ErrInsufficientPoints = &Error{Kind: KindInsufficientPoints}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or "" for storage and other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// isDuplicateKey recognises unique-constraint violations across the
// supported drivers, with or without gorm error translation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
