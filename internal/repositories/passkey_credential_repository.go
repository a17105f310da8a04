package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// PasskeyCredentialRepository persists WebAuthn credentials. Lookups by
// credential ID only consider active credentials so an inactive
// passkey can never satisfy an assertion.
type PasskeyCredentialRepository interface {
	Create(ctx context.Context, c *models.PasskeyCredential) error
	// GetByCredentialID returns the active credential and its owning user,
	// or (nil, nil, nil) when no active credential matches.
	GetByCredentialID(ctx context.Context, credentialID []byte) (*models.PasskeyCredential, *models.User, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]models.PasskeyCredential, error)
	GetCredentialIDsForUser(ctx context.Context, userID uuid.UUID) ([][]byte, error)
	// UpdateSignCount persists the post-assertion counter and stamps
	// last_used_at. Only active credentials are updated.
	UpdateSignCount(ctx context.Context, credentialID []byte, signCount uint32) error
	// Delete removes a credential owned by userID.
	Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

type passkeyCredentialRepo struct {
	db DB
}

func NewPasskeyCredentialRepository(db DB) PasskeyCredentialRepository {
	return &passkeyCredentialRepo{db: db}
}

func (r *passkeyCredentialRepo) Create(ctx context.Context, c *models.PasskeyCredential) error {
	q := `
        INSERT INTO passkey_credentials (
            id, user_id, credential_id, public_key, sign_count,
            aaguid, device_name, is_active, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
    `
	_, err := r.db.Exec(ctx, q,
		c.ID, c.UserID, c.CredentialID, c.PublicKey, c.SignCount,
		c.AAGUID, c.DeviceName, c.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return utils.ErrDuplicateCredential
		}
		return err
	}
	return nil
}

func (r *passkeyCredentialRepo) GetByCredentialID(ctx context.Context, credentialID []byte) (*models.PasskeyCredential, *models.User, error) {
	q := `
        SELECT c.id, c.user_id, c.credential_id, c.public_key, c.sign_count,
               c.aaguid, c.device_name, c.is_active, c.created_at, c.last_used_at,
               u.id, u.username, u.email, u.full_name, u.is_active, u.is_superuser, u.created_at, u.updated_at
        FROM passkey_credentials c
        JOIN users u ON u.id = c.user_id
        WHERE c.credential_id = $1 AND c.is_active = TRUE
    `
	row := r.db.QueryRow(ctx, q, credentialID)
	var c models.PasskeyCredential
	var u models.User
	err := row.Scan(
		&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
		&c.AAGUID, &c.DeviceName, &c.IsActive, &c.CreatedAt, &c.LastUsedAt,
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &c, &u, nil
}

func (r *passkeyCredentialRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]models.PasskeyCredential, error) {
	q := `
        SELECT id, user_id, credential_id, public_key, sign_count,
               aaguid, device_name, is_active, created_at, last_used_at
        FROM passkey_credentials
        WHERE user_id = $1 AND is_active = TRUE
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []models.PasskeyCredential
	for rows.Next() {
		var c models.PasskeyCredential
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
			&c.AAGUID, &c.DeviceName, &c.IsActive, &c.CreatedAt, &c.LastUsedAt,
		); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *passkeyCredentialRepo) GetCredentialIDsForUser(ctx context.Context, userID uuid.UUID) ([][]byte, error) {
	q := `
        SELECT credential_id
        FROM passkey_credentials
        WHERE user_id = $1 AND is_active = TRUE
    `
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids [][]byte
	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *passkeyCredentialRepo) UpdateSignCount(ctx context.Context, credentialID []byte, signCount uint32) error {
	q := `
        UPDATE passkey_credentials
        SET sign_count = $2, last_used_at = NOW()
        WHERE credential_id = $1 AND is_active = TRUE
    `
	tag, err := r.db.Exec(ctx, q, credentialID, signCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrCredentialNotFound
	}
	return nil
}

func (r *passkeyCredentialRepo) Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	q := `DELETE FROM passkey_credentials WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrCredentialNotFound
	}
	return nil
}
