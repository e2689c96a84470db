package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/notify"
	"github.com/ayusman/signspeak/internal/store"
)

// DefaultResetCodeTTL is how long a password reset code stays valid.
const DefaultResetCodeTTL = 15 * time.Minute

// MaxResetAttempts is how many wrong guesses a reset code survives.
const MaxResetAttempts = 5

var (
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email that is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when no active user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidResetCode is returned for a wrong, used or expired reset code.
	ErrInvalidResetCode = errors.New("invalid or expired reset code")
)

// Service implements account operations.
type Service struct {
	store    *store.Store
	sessions *SessionManager
	notifier notify.Notifier
	resetTTL time.Duration
	now      func() time.Time
}

// NewService wires the account service. A nil notifier logs reset codes.
func NewService(st *store.Store, sessions *SessionManager, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{
		store:    st,
		sessions: sessions,
		notifier: notifier,
		resetTTL: DefaultResetCodeTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates a regular user account.
func (s *Service) Register(fullname, email, password string) (*store.User, error) {
	return s.CreateUser(fullname, email, password, []string{store.RoleUser})
}

// CreateUser creates an account with the given roles.
func (s *Service) CreateUser(fullname, email, password string, roles []string) (*store.User, error) {
	if err := ValidateRegistration(fullname, email, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &store.User{
		FullName:     strings.TrimSpace(fullname),
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := s.store.Users().Create(u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user":  u.ID,
		"roles": u.Roles,
	}).Info("user created")

	return u, nil
}

// Login checks credentials and opens a session.
func (s *Service) Login(email, password string) (*store.User, *store.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	u, err := s.store.Users().GetByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Logout ends a session.
func (s *Service) Logout(sessionID string) error {
	return s.sessions.Destroy(sessionID)
}

// UpdateProfile changes the user's name and, when password is non-empty, their password.
func (s *Service) UpdateProfile(u *store.User, fullname, password string) (*store.User, error) {
	return s.UpdateUser(u.ID, UserChanges{FullName: &fullname, Password: password})
}

// UserChanges lists optional edits. Nil or empty fields are left unchanged.
type UserChanges struct {
	FullName *string
	Email    *string
	Password string
	Roles    []string
}

// UpdateUser applies changes to an active user.
func (s *Service) UpdateUser(id string, changes UserChanges) (*store.User, error) {
	u, err := s.store.Users().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.Deleted {
		return nil, ErrUserNotFound
	}

	if changes.FullName != nil {
		if err := ValidateFullName(*changes.FullName); err != nil {
			return nil, err
		}
		u.FullName = strings.TrimSpace(*changes.FullName)
	}
	if changes.Email != nil {
		if err := ValidateEmail(*changes.Email); err != nil {
			return nil, err
		}
		u.Email = *changes.Email
	}
	if changes.Password != "" {
		if err := ValidatePassword(changes.Password); err != nil {
			return nil, err
		}
		hash, err := HashPassword(changes.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if len(changes.Roles) > 0 {
		u.Roles = changes.Roles
	}

	if err := s.store.Users().Update(u); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// DeleteUser soft-deletes a user and ends their sessions.
func (s *Service) DeleteUser(id string) error {
	if err := s.store.Users().SoftDelete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.sessions.DestroyForUser(id); err != nil {
		logrus.WithError(err).WithField("user", id).Warn("failed to end sessions of deleted user")
	}
	return nil
}

// SendResetCode issues a fresh six-digit code for email and delivers it.
// Any earlier code for the same email stops working.
func (s *Service) SendResetCode(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	u, err := s.store.Users().GetByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	rc := &store.ResetCode{
		Email:     u.Email,
		CodeHash:  hashCode(code),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.store.ResetCodes().Upsert(rc); err != nil {
		return fmt.Errorf("save reset code: %w", err)
	}

	msg := notify.Message{
		Kind:    notify.KindResetCode,
		To:      u.Email,
		Subject: "Your password reset code",
		Body: fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in %d minutes.\n",
			u.FullName, code, int(s.resetTTL.Minutes())),
		Data: map[string]string{"code": code},
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("deliver reset code: %w", err)
	}
	return nil
}

// ResetPassword sets a new password if code is the current, unexpired code
// for email. A code works once and is discarded after MaxResetAttempts wrong
// guesses. All sessions of the user are ended.
func (s *Service) ResetPassword(email, code, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	rc, err := s.store.ResetCodes().Get(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return err
	}
	if !s.now().Before(rc.ExpiresAt) {
		s.store.ResetCodes().Delete(rc.Email)
		return ErrInvalidResetCode
	}
	if rc.Attempts >= MaxResetAttempts {
		s.store.ResetCodes().Delete(rc.Email)
		return ErrInvalidResetCode
	}
	if subtle.ConstantTimeCompare([]byte(hashCode(strings.TrimSpace(code))), []byte(rc.CodeHash)) != 1 {
		burned, err := s.store.ResetCodes().RecordFailure(rc.Email, MaxResetAttempts)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if burned {
			logrus.WithField("email", rc.Email).Warn("reset code discarded after too many wrong attempts")
		}
		return ErrInvalidResetCode
	}

	u, err := s.store.Users().GetByEmail(rc.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := s.store.Users().Update(u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.store.ResetCodes().Delete(rc.Email); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := s.sessions.DestroyForUser(u.ID); err != nil {
		logrus.WithError(err).Warn("failed to end sessions after password reset")
	}

	logrus.WithField("user", u.ID).Info("password reset")
	return nil
}

// EnsureAdmin makes sure an admin account exists for email, creating it or
// granting the role. It reports whether anything changed.
func (s *Service) EnsureAdmin(fullname, email, password string) (bool, error) {
	u, err := s.store.Users().GetByEmail(email)
	if errors.Is(err, store.ErrNotFound) {
		if fullname == "" {
			fullname = "Administrator"
		}
		_, err := s.CreateUser(fullname, email, password, []string{store.RoleAdmin, store.RoleUser})
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	if u.IsAdmin() {
		return false, nil
	}
	u.Roles = append(u.Roles, store.RoleAdmin)
	if err := s.store.Users().Update(u); err != nil {
		return false, err
	}
	return true, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
