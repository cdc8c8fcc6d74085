package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

const credentialColumns = `id, email, access_token, access_token_expiry, refresh_token,
	session_token, session_token_previous, session_token_expiry, created_at, updated_at`

// CredentialRepository implements [models.CredentialStore] for the users table.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get retrieves a credential by user id.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*models.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM users WHERE id = ?`, userID)

	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return c, nil
}

// Upsert inserts a credential or replaces every mutable column of an existing one.
func (r *CredentialRepository) Upsert(ctx context.Context, c *models.Credential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO users (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			access_token_expiry = excluded.access_token_expiry,
			refresh_token = excluded.refresh_token,
			session_token = excluded.session_token,
			session_token_previous = excluded.session_token_previous,
			session_token_expiry = excluded.session_token_expiry,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		c.UserID,
		c.Email,
		nullString(c.AccessToken),
		nullTime(c.AccessTokenExpiry),
		nullString(c.RefreshToken),
		nullString(c.SessionToken),
		nullString(c.SessionTokenPrevious),
		nullTime(c.SessionTokenExpiry),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

// UpdateTokens persists a refreshed access token, its expiry and the (possibly rotated) refresh token.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, userID, accessToken string, expiry time.Time, refreshToken string) error {
	if accessToken != "" && expiry.IsZero() {
		return fmt.Errorf("validation failed: access token for %s has no expiry", userID)
	}

	query := `
		UPDATE users
		SET access_token = ?, access_token_expiry = ?, refresh_token = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, nullString(accessToken), nullTime(expiry), nullString(refreshToken), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return requireRow(result, userID)
}

// UpdateSession persists the session token triple. Empty values clear the columns.
func (r *CredentialRepository) UpdateSession(ctx context.Context, userID, token, previous string, expiry time.Time) error {
	query := `
		UPDATE users
		SET session_token = ?, session_token_previous = ?, session_token_expiry = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, nullString(token), nullString(previous), nullTime(expiry), time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(result, userID)
}

// ClearExpiredSessions clears the session columns of every user whose session expired at or before now.
//
// Expiries are compared in Go since stored timestamps may carry different zone offsets.
func (r *CredentialRepository) ClearExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, session_token_expiry FROM users WHERE session_token IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query sessions: %w", err)
	}

	var expired []string
	for rows.Next() {
		var (
			id     string
			expiry sql.NullTime
		)
		if err := rows.Scan(&id, &expiry); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan session: %w", err)
		}
		if !timeOrZero(expiry).After(now) {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating sessions: %w", err)
	}
	rows.Close()

	for _, id := range expired {
		query := `
			UPDATE users
			SET session_token = NULL, session_token_previous = NULL, session_token_expiry = NULL, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query, time.Now(), id); err != nil {
			return 0, fmt.Errorf("failed to clear session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(expired), nil
}

func requireRow(result sql.Result, userID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUnknownUser, userID)
	}
	return nil
}

func scanCredential(row scanner) (*models.Credential, error) {
	var (
		c                             models.Credential
		accessToken, refreshToken     sql.NullString
		sessionToken, sessionPrevious sql.NullString
		accessExpiry, sessionExpiry   sql.NullTime
	)

	err := row.Scan(
		&c.UserID,
		&c.Email,
		&accessToken,
		&accessExpiry,
		&refreshToken,
		&sessionToken,
		&sessionPrevious,
		&sessionExpiry,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.AccessToken = accessToken.String
	c.AccessTokenExpiry = timeOrZero(accessExpiry)
	c.RefreshToken = refreshToken.String
	c.SessionToken = sessionToken.String
	c.SessionTokenPrevious = sessionPrevious.String
	c.SessionTokenExpiry = timeOrZero(sessionExpiry)

	return &c, nil
}
