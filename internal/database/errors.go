package database

import "github.com/koustreak/rowmap/internal/errs"

// Constructor helpers shared by the builders and the row helpers. Drivers
// map their native errors with their own mapError.

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}
