package domain

import "time"

// ScaStatus is the status of a single PSU authorisation leg.
type ScaStatus string

const (
	ScaReceived          ScaStatus = "received"
	ScaPsuIdentified     ScaStatus = "psuIdentified"
	ScaPsuAuthenticated  ScaStatus = "psuAuthenticated"
	ScaMethodSelected    ScaStatus = "scaMethodSelected"
	ScaStarted           ScaStatus = "started"
	ScaUnconfirmed       ScaStatus = "unconfirmed"
	ScaFinalised         ScaStatus = "finalised"
	ScaFailed            ScaStatus = "failed"
	ScaExempted          ScaStatus = "exempted"
	ScaExpired           ScaStatus = "expired"
	ScaRevokedByPsu      ScaStatus = "revokedByPsu"
)

// IsValidScaStatus reports whether s is one of the known SCA statuses.
func IsValidScaStatus(s ScaStatus) bool {
	switch s {
	case ScaReceived, ScaPsuIdentified, ScaPsuAuthenticated, ScaMethodSelected,
		ScaStarted, ScaUnconfirmed, ScaFinalised, ScaFailed, ScaExempted,
		ScaExpired, ScaRevokedByPsu:
		return true
	}
	return false
}

// Succeeded reports whether the authorisation leg completed successfully.
// An exempted leg counts as success since SCA was waived for it.
func (s ScaStatus) Succeeded() bool {
	return s == ScaFinalised || s == ScaExempted
}

// AuthType distinguishes consent-creation authorisations from
// cancellation authorisations of the same consent.
type AuthType string

const (
	AuthTypeCreate AuthType = "authorisation"
	AuthTypeCancel AuthType = "cancellation"
)

// AggregatedStatus is the consent-level status derived from the full set of
// authorisation legs of one type. It is recomputed on every leg change and
// never persisted directly.
type AggregatedStatus string

const (
	AggregatedNone                AggregatedStatus = ""
	AggregatedPartiallyAuthorised AggregatedStatus = "partiallyAuthorised"
	AggregatedFullyAuthorised     AggregatedStatus = "fullyAuthorised"
	AggregatedRejected            AggregatedStatus = "rejected"
	AggregatedFailed              AggregatedStatus = "failed"
)

// Terminal reports whether the aggregate admits no further transitions:
// every leg has reached a final state, or a single rejection or failure has
// short-circuited the aggregate.
func (s AggregatedStatus) Terminal() bool {
	return s == AggregatedFullyAuthorised || s == AggregatedRejected || s == AggregatedFailed
}

// AuthorisationResource is one PSU's sign-off attempt on a consent.
type AuthorisationResource struct {
	AuthorisationID string
	ConsentID       string
	AuthType        AuthType
	UserID          string
	Status          ScaStatus
	UpdatedAt       time.Time
}
