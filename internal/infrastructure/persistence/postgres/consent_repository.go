package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ConsentRepository is the postgres implementation of the consent storage
// collaborator.
type ConsentRepository struct {
	db *DB
}

var _ application.ConsentStorage = (*ConsentRepository)(nil)

func NewConsentRepository(db *DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

func (r *ConsentRepository) CreateConsent(ctx context.Context, consent *domain.Consent) error {
	query := `
		INSERT INTO consents (consent_id, client_id, consent_type, status, payload, recurring, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`

	createdAt := consent.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, query,
		consent.ConsentID,
		consent.ClientID,
		consent.Type,
		consent.Status,
		consent.Payload,
		consent.Recurring,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consent: %w", err)
	}
	return nil
}

func (r *ConsentRepository) GetConsent(ctx context.Context, consentID string) (*domain.Consent, error) {
	query := `
		SELECT consent_id, client_id, consent_type, status, payload, recurring, created_at, updated_at
		FROM consents
		WHERE consent_id = $1
	`

	var consent domain.Consent
	err := r.db.Pool.QueryRow(ctx, query, consentID).Scan(
		&consent.ConsentID,
		&consent.ClientID,
		&consent.Type,
		&consent.Status,
		&consent.Payload,
		&consent.Recurring,
		&consent.CreatedAt,
		&consent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return &consent, nil
}

func (r *ConsentRepository) UpdateConsentStatus(ctx context.Context, consentID string, status domain.ConsentStatus) error {
	query := `
		UPDATE consents SET status = $1, updated_at = $2 WHERE consent_id = $3
	`

	tag, err := r.db.Pool.Exec(ctx, query, status, time.Now().UTC(), consentID)
	if err != nil {
		return fmt.Errorf("failed to update consent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConsentNotFound
	}
	return nil
}

func (r *ConsentRepository) CreateAuthorisation(ctx context.Context, auth *domain.AuthorisationResource) error {
	query := `
		INSERT INTO consent_authorisations (authorisation_id, consent_id, auth_type, user_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	updatedAt := auth.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, query,
		auth.AuthorisationID,
		auth.ConsentID,
		auth.AuthType,
		auth.UserID,
		auth.Status,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create authorisation: %w", err)
	}
	return nil
}

func (r *ConsentRepository) GetAuthorisation(ctx context.Context, authorisationID string) (*domain.AuthorisationResource, error) {
	query := `
		SELECT authorisation_id, consent_id, auth_type, user_id, status, updated_at
		FROM consent_authorisations
		WHERE authorisation_id = $1
	`

	var auth domain.AuthorisationResource
	err := r.db.Pool.QueryRow(ctx, query, authorisationID).Scan(
		&auth.AuthorisationID,
		&auth.ConsentID,
		&auth.AuthType,
		&auth.UserID,
		&auth.Status,
		&auth.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuthorisationNotFound
		}
		return nil, fmt.Errorf("failed to get authorisation: %w", err)
	}
	return &auth, nil
}

func (r *ConsentRepository) GetAuthorisations(ctx context.Context, consentID string) ([]domain.AuthorisationResource, error) {
	query := `
		SELECT authorisation_id, consent_id, auth_type, user_id, status, updated_at
		FROM consent_authorisations
		WHERE consent_id = $1
		ORDER BY authorisation_id
	`

	rows, err := r.db.Pool.Query(ctx, query, consentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorisations: %w", err)
	}
	defer rows.Close()

	var authorisations []domain.AuthorisationResource
	for rows.Next() {
		var auth domain.AuthorisationResource
		if err := rows.Scan(
			&auth.AuthorisationID,
			&auth.ConsentID,
			&auth.AuthType,
			&auth.UserID,
			&auth.Status,
			&auth.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan authorisation: %w", err)
		}
		authorisations = append(authorisations, auth)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read authorisations: %w", err)
	}
	return authorisations, nil
}

func (r *ConsentRepository) UpdateAuthorisationStatus(ctx context.Context, authorisationID string, status domain.ScaStatus) error {
	query := `
		UPDATE consent_authorisations SET status = $1, updated_at = $2 WHERE authorisation_id = $3
	`

	tag, err := r.db.Pool.Exec(ctx, query, status, time.Now().UTC(), authorisationID)
	if err != nil {
		return fmt.Errorf("failed to update authorisation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuthorisationNotFound
	}
	return nil
}
