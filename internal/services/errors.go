package services

import (
	"errors"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// storageError maps repository sentinels onto API error kinds. notFound is
// the message used when the record does not exist.
func storageError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return core.NotFoundf("%s", notFound)
	case errors.Is(err, storage.ErrConflict):
		return &core.Error{Kind: core.KindConflict, Message: "Resource already exists", Err: err}
	case errors.Is(err, storage.ErrInUse):
		return &core.Error{Kind: core.KindConflict, Message: "Resource is still in use", Err: err}
	case core.KindOf(err) != core.KindInternal:
		return err
	default:
		return core.Internal("storage failure", err)
	}
}

// validationError wraps a domain validation failure for the API.
func validationError(err error) error {
	return &core.Error{Kind: core.KindValidation, Message: err.Error(), Err: err}
}

// owned rejects records that belong to someone else.
func owned(ownerID, userID, what string) error {
	if ownerID != userID {
		return core.Forbiddenf("You do not have access to this %s", what)
	}
	return nil
}
