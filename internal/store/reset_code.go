package store

import (
	"database/sql"
	"errors"
	"time"
)

// ResetCode is a pending password reset. Only the hash of the code is kept.
type ResetCode struct {
	Email     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ResetCodeRepository provides operations on reset codes.
type ResetCodeRepository struct {
	db *sql.DB
}

// ResetCodes returns the reset code repository for this store.
func (s *Store) ResetCodes() *ResetCodeRepository {
	return &ResetCodeRepository{db: s.db}
}

// Upsert stores rc, replacing any earlier code for the same email and
// clearing its failed attempts.
func (r *ResetCodeRepository) Upsert(rc *ResetCode) error {
	rc.Email = NormalizeEmail(rc.Email)
	rc.Attempts = 0
	rc.CreatedAt = now()
	_, err := r.db.Exec(
		`INSERT INTO reset_codes (email, code_hash, attempts, expires_at, created_at) VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
			code_hash = excluded.code_hash,
			attempts = 0,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		rc.Email, rc.CodeHash, rc.ExpiresAt.Unix(), rc.CreatedAt.Unix(),
	)
	return err
}

// Get retrieves the pending code for email.
func (r *ResetCodeRepository) Get(email string) (*ResetCode, error) {
	rc := &ResetCode{}
	var expires, created int64
	err := r.db.QueryRow(
		`SELECT email, code_hash, attempts, expires_at, created_at FROM reset_codes WHERE email = ?`,
		NormalizeEmail(email),
	).Scan(&rc.Email, &rc.CodeHash, &rc.Attempts, &expires, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rc.ExpiresAt = fromUnix(expires)
	rc.CreatedAt = fromUnix(created)
	return rc, nil
}

// RecordFailure counts a wrong guess against the pending code for email and
// deletes the code once maxAttempts guesses have failed. It reports whether
// the code was deleted.
func (r *ResetCodeRepository) RecordFailure(email string, maxAttempts int) (bool, error) {
	email = NormalizeEmail(email)
	result, err := r.db.Exec(`UPDATE reset_codes SET attempts = attempts + 1 WHERE email = ?`, email)
	if err != nil {
		return false, err
	}
	if err := rowsAffected(result); err != nil {
		return false, err
	}

	result, err = r.db.Exec(`DELETE FROM reset_codes WHERE email = ? AND attempts >= ?`, email, maxAttempts)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the pending code for email.
func (r *ResetCodeRepository) Delete(email string) error {
	result, err := r.db.Exec(`DELETE FROM reset_codes WHERE email = ?`, NormalizeEmail(email))
	if err != nil {
		return err
	}
	return rowsAffected(result)
}
