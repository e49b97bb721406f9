package ordstore

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrConfig        ErrorKind = "config"
	ErrSQL           ErrorKind = "sql"
	ErrMetadata      ErrorKind = "metadata"
	ErrUnknownTable  ErrorKind = "unknown_table"
	ErrUnknownColumn ErrorKind = "unknown_column"
	ErrPosition      ErrorKind = "position"
	ErrFeature       ErrorKind = "feature_missing"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func ConfigError(msg string) *Error {
	return &Error{Kind: ErrConfig, Message: msg}
}

func UnknownTableError(table string) *Error {
	return &Error{Kind: ErrUnknownTable, Message: "unknown table", Field: table}
}

func UnknownColumnError(table, column string) *Error {
	return &Error{Kind: ErrUnknownColumn, Message: "unknown column", Field: table + "." + column}
}

func PositionError(msg string) *Error {
	return &Error{Kind: ErrPosition, Message: msg}
}

func FeatureError(msg string) *Error {
	return &Error{Kind: ErrFeature, Message: msg}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
