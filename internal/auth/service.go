// Package auth handles local and Google sign-in, access tokens and the
// user's profile.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   db.Repository
	tokens *TokenManager
	google GoogleVerifier
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(repo db.Repository, tokens *TokenManager, google GoogleVerifier, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		google: google,
		now:    time.Now,
		log:    log.With().Str("component", "auth").Logger(),
	}
}

// Signup creates a local account. The profile starts incomplete.
func (s *Service) Signup(ctx context.Context, req model.SignupRequest) (*model.AuthResponse, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%s: %w", email, errors.ErrUserExists)
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		AuthProvider: model.AuthProviderLocal,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("User signed up")
	return s.respond(user, "User has been created. Please complete the profile.")
}

// Login checks a local password. For a user whose profile is still
// incomplete it returns the response together with ErrProfileIncomplete.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, errors.ErrInvalidCredentials
	}
	if err := CheckPassword(*user.PasswordHash, req.Password); err != nil {
		return nil, err
	}
	return s.login(ctx, user)
}

// GoogleSignup creates an account from a Google ID token. The Google subject
// becomes the user ID.
func (s *Service) GoogleSignup(ctx context.Context, req model.GoogleTokenRequest) (*model.AuthResponse, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	identity, err := s.google.Verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(identity.Email)

	if _, err := s.repo.GetUserByID(ctx, identity.Subject); err == nil {
		return nil, fmt.Errorf("%s: %w", email, errors.ErrUserExists)
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	user := &model.User{
		ID:           identity.Subject,
		Email:        email,
		AuthProvider: model.AuthProviderGoogle,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("Google user signed up")
	return s.respond(user, "User has been created. Please complete the profile.")
}

// GoogleLogin signs in an existing Google account. Unknown accounts yield
// ErrNotFound.
func (s *Service) GoogleLogin(ctx context.Context, req model.GoogleTokenRequest) (*model.AuthResponse, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	identity, err := s.google.Verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(identity.Email))
	if err != nil {
		return nil, err
	}
	return s.login(ctx, user)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile replaces the editable profile fields and marks the profile
// complete.
func (s *Service) UpdateProfile(ctx context.Context, userID string, profile model.Profile) (*model.User, error) {
	if err := model.Validate(profile); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	user, err := s.repo.UpdateProfile(ctx, userID, profile)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Msg("Profile updated")
	return user, nil
}

func (s *Service) login(ctx context.Context, user *model.User) (*model.AuthResponse, error) {
	if !user.IsProfileComplete {
		resp, err := s.respond(user, "Please complete your profile.")
		if err != nil {
			return nil, err
		}
		return resp, errors.ErrProfileIncomplete
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}
	s.log.Info().Str("user_id", user.ID).Msg("User logged in")
	return s.respond(user, "Login successful")
}

func (s *Service) respond(user *model.User, message string) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		Message:           message,
		UserID:            user.ID,
		Email:             user.Email,
		IsProfileComplete: user.IsProfileComplete,
		Token:             token,
		User:              user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
