// Package auth manages accounts and the local sign-in session.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mapory/internal/mapory"
	"mapory/internal/model"
)

const minPasswordLength = 6

// UserStore is the part of the database accounts are kept in.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User, passwordHash string) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, string, error)
}

// Service registers accounts and keeps the signed-in user in a session file.
type Service struct {
	users       UserStore
	sessionPath string
	secret      []byte
	ttl         time.Duration
	clock       mapory.Clock
	ids         mapory.IDGenerator
	logger      mapory.Logger
}

func NewService(users UserStore, sessionPath string, secret []byte, ttl time.Duration,
	clock mapory.Clock, ids mapory.IDGenerator, logger mapory.Logger) *Service {
	return &Service{
		users:       users,
		sessionPath: sessionPath,
		secret:      secret,
		ttl:         ttl,
		clock:       clock,
		ids:         ids,
		logger:      logger,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	at := strings.Index(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") || strings.ContainsAny(email, " \t") {
		return mapory.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return mapory.ErrWeakPassword
	}
	return nil
}

// Register creates an account and signs it in. The new user has no
// position and no profile photo.
func (s *Service) Register(ctx context.Context, email, password, username string) (*model.User, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		UserID:   s.ids.New(),
		Email:    email,
		Username: strings.TrimSpace(username),
	}
	if err := s.users.CreateUser(ctx, user, hash); err != nil {
		return nil, err
	}
	s.logger.Info("registered account", "user_id", user.UserID)

	if err := s.startSession(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and replaces the current session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	user, hash, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if user == nil || !CheckPassword(password, hash) {
		s.logger.Warn("login failed", "email", email)
		return nil, mapory.ErrInvalidCredentials
	}

	if err := s.startSession(user); err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "user_id", user.UserID)
	return user, nil
}

// Logout removes the session. Logging out twice is not an error.
func (s *Service) Logout() error {
	return removeSession(s.sessionPath)
}

// CurrentUserID returns the signed-in user's id, or ErrNotSignedIn when
// there is no session or its token is invalid or expired.
func (s *Service) CurrentUserID() (string, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return "", err
	}
	return user.UserID, nil
}

// CurrentUser returns the user record cached in the session.
func (s *Service) CurrentUser() (*model.User, error) {
	sess, err := readSession(s.sessionPath)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, mapory.ErrNotSignedIn
	}

	claims, err := ValidateToken(sess.Token, s.secret, s.clock.Now())
	if err != nil {
		s.logger.Debug("session token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", mapory.ErrNotSignedIn, err)
	}
	if claims.UserID != sess.User.UserID {
		return nil, fmt.Errorf("%w: session user mismatch", mapory.ErrNotSignedIn)
	}
	user := sess.User
	return &user, nil
}

func (s *Service) startSession(user *model.User) error {
	token, err := GenerateToken(user.UserID, s.secret, s.clock.Now(), s.ttl)
	if err != nil {
		return err
	}
	return writeSession(s.sessionPath, &session{Token: token, User: *user})
}
