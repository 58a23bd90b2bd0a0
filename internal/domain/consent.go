package domain

import (
	"encoding/json"
	"time"
)

// ConsentType identifies the banking service a consent was created for.
type ConsentType string

const (
	ConsentTypeAccounts          ConsentType = "accounts"
	ConsentTypePayments          ConsentType = "payments"
	ConsentTypeBulkPayments      ConsentType = "bulk-payments"
	ConsentTypePeriodicPayments  ConsentType = "periodic-payments"
	ConsentTypeFundsConfirmation ConsentType = "funds-confirmations"
)

// ConsentStatus is the persisted consent-level status.
type ConsentStatus string

const (
	ConsentReceived            ConsentStatus = "received"
	ConsentRejected            ConsentStatus = "rejected"
	ConsentPartiallyAuthorised ConsentStatus = "partiallyAuthorised"
	ConsentValid               ConsentStatus = "valid"
	ConsentRevokedByPsu        ConsentStatus = "revokedByPsu"
	ConsentExpired             ConsentStatus = "expired"
	ConsentTerminatedByTpp     ConsentStatus = "terminatedByTpp"
	ConsentCancellationPending ConsentStatus = "cancellationPending"
)

// Consent is a stored grant of access subject to one or more authorisations.
type Consent struct {
	ConsentID string
	ClientID  string
	Type      ConsentType
	Status    ConsentStatus
	Payload   json.RawMessage
	Recurring bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
