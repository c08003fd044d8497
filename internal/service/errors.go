package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// storageError translates repository failures: a missing row becomes
// NOT_FOUND for resource, anything else a persistence failure.
func storageError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewPersistenceError(err)
}

// requireID rejects missing or malformed identifiers before they reach storage.
func requireID(field, id string) error {
	if id == "" {
		return apperrors.NewValidationError(field+" is required", map[string]any{"field": field})
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError(field+" is malformed", map[string]any{"field": field, "value": id})
	}
	return nil
}

func requireIdentity(userID string) error {
	if userID == "" {
		return apperrors.NewUnauthorized("identity required")
	}
	return nil
}
