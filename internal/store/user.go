package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role names. Stored lowercase, compared case-insensitively.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. Deleted users are hidden from login and listings but
// keep their rows so feedback history survives.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"role"`
	Deleted      bool      `json:"deleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasRole reports whether the user holds role, ignoring case.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// UserCounts are the headline numbers for the admin dashboard.
type UserCounts struct {
	TotalUsers       int `json:"totalUsers"`
	TodaysUsers      int `json:"todaysUsers"`
	SoftDeletedUsers int `json:"softDeletedUsers"`
	Admins           int `json:"admins"`
}

// UserRepository provides CRUD operations for users.
type UserRepository struct {
	db *sql.DB
}

// Users returns the user repository for this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		out = append(out, RoleUser)
	}
	return out
}

const userColumns = `id, fullname, email, password_hash, roles, deleted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var roles string
	var created, updated int64
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &roles, &u.Deleted, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles for user %s: %w", u.ID, err)
	}
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	return u, nil
}

// Create inserts a new user. An empty ID is filled with a fresh UUID.
func (r *UserRepository) Create(u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = NormalizeEmail(u.Email)
	u.Roles = normalizeRoles(u.Roles)
	t := now()
	u.CreatedAt = t
	u.UpdatedAt = t

	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, string(roles), u.Deleted, t.Unix(), t.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a user by ID, including soft-deleted users.
func (r *UserRepository) GetByID(id string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail retrieves an active user by email.
func (r *UserRepository) GetByEmail(email string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted = 0`,
		NormalizeEmail(email),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns one page of active users, newest first, and the total number of active users.
func (r *UserRepository) List(page, limit int) ([]*User, int, error) {
	page, limit = Page(page, limit)

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE deleted = 0`).Scan(&total); err != nil {
		return nil, 0, err
	}

	users, err := r.query(
		`SELECT `+userColumns+` FROM users WHERE deleted = 0
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Recent returns the n most recently created active users.
func (r *UserRepository) Recent(n int) ([]*User, error) {
	if n <= 0 {
		n = 5
	}
	return r.query(
		`SELECT `+userColumns+` FROM users WHERE deleted = 0
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		n,
	)
}

// CreatedSince returns the creation times of active users created at or after t.
func (r *UserRepository) CreatedSince(t time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(
		`SELECT created_at FROM users WHERE deleted = 0 AND created_at >= ? ORDER BY created_at`,
		t.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var sec int64
		if err := rows.Scan(&sec); err != nil {
			return nil, err
		}
		out = append(out, fromUnix(sec))
	}
	return out, rows.Err()
}

// Counts returns dashboard totals. Users created at or after todayStart count as today's.
func (r *UserRepository) Counts(todayStart time.Time) (UserCounts, error) {
	var c UserCounts
	err := r.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted = 0 AND created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted = 1 THEN 1 ELSE 0 END), 0)
		 FROM users`,
		todayStart.UTC().Unix(),
	).Scan(&c.TotalUsers, &c.TodaysUsers, &c.SoftDeletedUsers)
	if err != nil {
		return c, err
	}

	err = r.db.QueryRow(
		`SELECT COUNT(*) FROM users, json_each(users.roles)
		 WHERE users.deleted = 0 AND lower(json_each.value) = ?`,
		RoleAdmin,
	).Scan(&c.Admins)
	return c, err
}

// Update saves the user's name, email, password hash and roles.
func (r *UserRepository) Update(u *User) error {
	u.Email = NormalizeEmail(u.Email)
	u.Roles = normalizeRoles(u.Roles)
	u.UpdatedAt = now()

	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`UPDATE users SET fullname = ?, email = ?, password_hash = ?, roles = ?, updated_at = ?
		 WHERE id = ? AND deleted = 0`,
		u.FullName, u.Email, u.PasswordHash, string(roles), u.UpdatedAt.Unix(), u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return rowsAffected(result)
}

// SoftDelete marks an active user as deleted.
func (r *UserRepository) SoftDelete(id string) error {
	result, err := r.db.Exec(
		`UPDATE users SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`,
		now().Unix(), id,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

func (r *UserRepository) query(q string, args ...any) ([]*User, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
