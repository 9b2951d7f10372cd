// Package services contains server-side business logic. UserService owns
// accounts and credentials; MailboxService owns messages.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/server/auth"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/repomanager"
)

// msgInvalidCredentials is the single message for every failed login.
const msgInvalidCredentials = "Invalid username or password"

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, storedHash string) (bool, error)
	VerifyMissing(password string)
}

// UserService provides account operations:
// - Create: register users with a hashed password
// - Login: verify credentials and stamp the login time
// - Find/SetRole/Delete: account administration
type UserService struct {
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	limits      Limits
	now         func() time.Time
}

// NewUserService constructs a UserService. A nil now uses time.Now.
func NewUserService(m repomanager.RepositoryManager, h PasswordHasher, limits Limits, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{repomanager: m, hasher: h, limits: limits.withDefaults(), now: now}
}

func (s *UserService) users() repositories.Repository[models.User] {
	return s.repomanager.Users()
}

// Find returns the user named username, or nil when there is none.
func (s *UserService) Find(ctx context.Context, username string) (*models.User, error) {
	found, err := s.users().FindByField(ctx, models.UserUsername, NormalizeUsername(username))
	if err != nil {
		return nil, common.Storage(err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// Exists reports whether a user named username is registered.
func (s *UserService) Exists(ctx context.Context, username string) (bool, error) {
	u, err := s.Find(ctx, username)
	return u != nil, err
}

// Count returns the number of registered users.
func (s *UserService) Count(ctx context.Context) (int, error) {
	all, err := s.users().FindAll(ctx)
	if err != nil {
		return 0, common.Storage(err)
	}
	return len(all), nil
}

func (s *UserService) validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < s.limits.MinUsernameLength || n > s.limits.MaxUsernameLength {
		return common.Validation("Username must be %d to %d characters long",
			s.limits.MinUsernameLength, s.limits.MaxUsernameLength)
	}
	if strings.ContainsFunc(username, func(r rune) bool { return isForbidden(r) || r == ' ' }) {
		return common.Validation("Username contains invalid characters")
	}
	return nil
}

func (s *UserService) validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < s.limits.MinPasswordLength {
		return common.Validation("Password must be at least %d characters long", s.limits.MinPasswordLength)
	}
	if len(password) > s.limits.MaxPasswordLength {
		return common.Validation("Password must be at most %d bytes long", s.limits.MaxPasswordLength)
	}
	return nil
}

// Create registers a user with the given role.
func (s *UserService) Create(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, common.Validation("Username and password are required")
	}
	if err := s.validateUsername(username); err != nil {
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}
	if _, ok := auth.ParseRole(string(role)); !ok {
		return nil, common.Validation("Unknown role %q", role)
	}

	existing, err := s.Find(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.Business("User %s already exists", username)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, &common.Error{Kind: common.KindUnexpected, Msg: "could not hash password", Err: err}
	}

	u := &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users().Save(ctx, u); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.Business("User %s already exists", username)
		}
		return nil, common.Storage(err)
	}
	return u, nil
}

// Login checks credentials and records the login time. Unknown users and
// wrong passwords fail with the same message.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, common.Validation("Username and password are required")
	}

	u, err := s.Find(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.hasher.VerifyMissing(password)
		return nil, common.Business(msgInvalidCredentials)
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		return nil, common.Business(msgInvalidCredentials)
	}

	at := s.now().UTC()
	if _, err := s.users().Update(ctx, u.ID, repositories.Fields{models.UserLoginTime: at}); err != nil {
		return nil, common.Storage(err)
	}
	u.LoginTime = &at
	return u, nil
}

// SetRole changes the role of username. It reports false when there is no
// such user.
func (s *UserService) SetRole(ctx context.Context, username string, role models.Role) (bool, error) {
	if _, ok := auth.ParseRole(string(role)); !ok {
		return false, common.Validation("Unknown role %q", role)
	}
	u, err := s.Find(ctx, username)
	if err != nil || u == nil {
		return false, err
	}
	ok, err := s.users().Update(ctx, u.ID, repositories.Fields{models.UserRole: string(role)})
	if err != nil {
		return false, common.Storage(err)
	}
	return ok, nil
}

// Delete removes username. Messages addressed to the user are kept.
func (s *UserService) Delete(ctx context.Context, username string) (bool, error) {
	u, err := s.Find(ctx, username)
	if err != nil || u == nil {
		return false, err
	}
	ok, err := s.users().Delete(ctx, u.ID)
	if err != nil {
		return false, common.Storage(err)
	}
	return ok, nil
}

// EnsureAdmin creates an admin account when no users exist yet. It reports
// whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, username, password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
