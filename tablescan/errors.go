package tablescan

import (
	"errors"

	"github.com/jamesrr39/goutil/errorsx"
)

// Scan failures. They are wrapped with errorsx.Wrap (so they carry a stack and key/value context),
// use IsErr to test for them.
var (
	ErrStorageUnavailable = errors.New("StorageUnavailable")
	ErrUnknownColumn      = errors.New("UnknownColumn")
	ErrInvalidPredicate   = errors.New("InvalidPredicate")
)

// IsErr reports whether err was caused by target.
func IsErr(err error, target error) bool {
	if err == nil {
		return false
	}

	return errorsx.Cause(err) == target
}

func NewStorageUnavailableError(cause error, kvPairs ...interface{}) errorsx.Error {
	if cause != nil {
		kvPairs = append(kvPairs, "cause", cause.Error())
	}
	return errorsx.Wrap(ErrStorageUnavailable, kvPairs...)
}

func NewUnknownColumnError(columnName string) errorsx.Error {
	return errorsx.Wrap(ErrUnknownColumn, "column", columnName)
}

func NewInvalidPredicateError(reason string, kvPairs ...interface{}) errorsx.Error {
	kvPairs = append(kvPairs, "reason", reason)
	return errorsx.Wrap(ErrInvalidPredicate, kvPairs...)
}
