package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayush-jadaun/VidVsita/internal/config"
	"github.com/ayush-jadaun/VidVsita/internal/events"
	"github.com/ayush-jadaun/VidVsita/internal/hash"
	"github.com/ayush-jadaun/VidVsita/internal/logging"
	"github.com/ayush-jadaun/VidVsita/internal/models"
	"github.com/ayush-jadaun/VidVsita/internal/repo"
	"github.com/ayush-jadaun/VidVsita/internal/tokens"
)

var (
	ErrConflict = errors.New("Username is already taken")
	// ErrInvalidCredentials covers both unknown username and wrong
	// password so responses cannot be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

// ValidationError reports a missing request field. Policy violations
// are a separate kind (hash.ErrWeakPassword).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

type AuthResult struct {
	User models.PublicUser
	TokenPair
}

type AuthService struct {
	Repo     *repo.GormRepo
	Tokens   config.TokenConfig
	Producer *events.Producer
}

func (s *AuthService) issuePair(userID string) (*TokenPair, error) {
	accessToken, accessExp, err := tokens.Issue(userID, s.Tokens.AccessSecret, s.Tokens.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExp, err := tokens.Issue(userID, s.Tokens.RefreshSecret, s.Tokens.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, name, username, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if name == "" {
		return nil, &ValidationError{Message: "Name is required"}
	}
	if username == "" {
		return nil, &ValidationError{Message: "Username is required"}
	}
	if password == "" {
		return nil, &ValidationError{Message: "Password is required"}
	}
	if err := hash.ValidatePolicy(password); err != nil {
		return nil, err
	}

	username = strings.ToLower(username)

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Name:         name,
		Username:     username,
		PasswordHash: pwHash,
		IsActive:     true,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			l.Warn("register_failed", "reason", "username_taken", "username", username)
			return nil, ErrConflict
		}
		l.Error("register_failed", "reason", "db_error", "error", err)
		return nil, err
	}

	pair, err := s.issuePair(user.ID.String())
	if err != nil {
		l.Error("register_failed", "error", err)
		return nil, err
	}
	// Fresh rows hold "" so the conditional update cannot lose a race.
	if err := s.Repo.RotateRefreshToken(ctx, user.ID, "", tokens.Sha256Hex(pair.RefreshToken)); err != nil {
		l.Error("register_failed", "reason", "store refresh token", "error", err)
		return nil, err
	}

	s.publish(ctx, "user_registered", &user)
	l.Info("register_successful", "user_id", user.ID)

	return &AuthResult{User: user.Public(), TokenPair: *pair}, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if username == "" || password == "" {
		return nil, &ValidationError{Message: "Username and password are required"}
	}

	username = strings.ToLower(username)

	// Two rotation attempts: the second re-reads the row if a
	// concurrent login/refresh won the first conditional update.
	var user *models.User
	var pair *TokenPair
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		user, err = s.Repo.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				l.Warn("login_failed", "reason", "unknown_username")
				return nil, ErrInvalidCredentials
			}
			l.Error("login_failed", "reason", "db_error", "error", err)
			return nil, err
		}
		if !hash.CheckPassword(user.PasswordHash, password) {
			l.Warn("login_failed", "reason", "password_mismatch", "user_id", user.ID)
			return nil, ErrInvalidCredentials
		}

		pair, err = s.issuePair(user.ID.String())
		if err != nil {
			l.Error("login_failed", "error", err)
			return nil, err
		}
		err = s.Repo.RotateRefreshToken(ctx, user.ID, user.RefreshToken, tokens.Sha256Hex(pair.RefreshToken))
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrStaleRefresh) {
			l.Error("login_failed", "reason", "store refresh token", "error", err)
			return nil, err
		}
		if attempt == 1 {
			l.Warn("login_failed", "reason", "rotation_conflict", "user_id", user.ID)
			return nil, err
		}
	}

	s.publish(ctx, "user_logged_in", user)
	l.Info("login_successful", "user_id", user.ID)

	return &AuthResult{User: user.Public(), TokenPair: *pair}, nil
}

// Logout revokes the stored refresh token. It never fails the request
// for an already-cleared session; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, user *models.User) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if err := s.Repo.ClearRefreshToken(ctx, user.ID); err != nil {
		l.Error("logout_failed", "reason", "cannot clear refresh token", "error", err)
		return err
	}

	s.publish(ctx, "user_logged_out", user)
	l.Info("logout_successful", "user_id", user.ID)
	return nil
}

// Refresh rotates both tokens for a user whose presented refresh token
// the refresh guard has already matched against the stored digest. A
// concurrent rotation between that check and the conditional update
// surfaces as repo.ErrStaleRefresh.
func (s *AuthService) Refresh(ctx context.Context, user *models.User, presented string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	pair, err := s.issuePair(user.ID.String())
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return nil, err
	}
	err = s.Repo.RotateRefreshToken(ctx, user.ID, tokens.Sha256Hex(presented), tokens.Sha256Hex(pair.RefreshToken))
	if err != nil {
		if errors.Is(err, repo.ErrStaleRefresh) {
			l.Warn("refresh_failed", "reason", "rotation_conflict", "user_id", user.ID)
		} else {
			l.Error("refresh_failed", "reason", "db_error", "error", err)
		}
		return nil, err
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return &AuthResult{User: user.Public(), TokenPair: *pair}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, user *models.User) {
	event := map[string]any{
		"type":     eventType,
		"user_id":  user.ID.String(),
		"username": user.Username,
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.Producer.PublishEvent(pubCtx, user.ID.String(), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "event", eventType, "error", err)
	}
}
