package domain

import "errors"

var (
	ErrConsentNotFound       = errors.New("consent not found")
	ErrAuthorisationNotFound = errors.New("authorisation not found")
	ErrConsentMismatch       = errors.New("authorisation does not belong to consent")
)
