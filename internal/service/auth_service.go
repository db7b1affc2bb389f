package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/mapper"
	"github.com/nordvik-media/blog-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenExchanger drives the authorization-code flow against the identity
// provider. Satisfied by auth.OIDCClient.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.TokenSet, error)
	LogoutURL(postLogoutRedirect string) string
}

// ClaimsVerifier validates an id_token and extracts its identity claims.
// Satisfied by auth.IDTokenVerifier.
type ClaimsVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// CallbackParams are the query parameters the provider sends to the
// redirect endpoint after the user authenticates (or fails to).
type CallbackParams struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// AuthService handles local accounts and the Microsoft federated login flow
type AuthService struct {
	userRepo  *repository.UserRepository
	exchanger TokenExchanger
	verifier  ClaimsVerifier
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(userRepo *repository.UserRepository, exchanger TokenExchanger, verifier ClaimsVerifier, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		exchanger: exchanger,
		verifier:  verifier,
		logger:    logger,
	}
}

// Register creates a local account with a bcrypt password hash
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserDTO, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	user := &domain.User{Username: req.Username}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// LoginLocal checks a username/password pair and binds the session to the
// user on success. Federated-only accounts (no password hash) always fail
// this path.
func (s *AuthService) LoginLocal(ctx context.Context, sess *auth.Session, req *domain.LoginRequest) (*domain.UserDTO, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	sess.UserID = &user.ID
	sess.RememberMe = req.RememberMe
	sess.Claims = nil
	sess.TokenCache = nil

	s.logger.Info("local login", zap.Uint("user_id", user.ID), zap.String("username", user.Username))

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// BeginFederatedLogin stores a fresh state value on the session and returns
// the provider authorization URL carrying it.
func (s *AuthService) BeginFederatedLogin(sess *auth.Session) string {
	state := uuid.New().String()
	sess.State = state
	return s.exchanger.AuthCodeURL(state)
}

// CompleteFederatedLogin finishes the authorization-code flow. The returned
// state must match the one stored on the session before anything else is
// looked at, so a forged callback fails even when it carries a valid code.
// The user account is provisioned on first login.
func (s *AuthService) CompleteFederatedLogin(ctx context.Context, sess *auth.Session, params *CallbackParams) (*domain.UserDTO, error) {
	expectedState := sess.State
	sess.State = ""

	if expectedState == "" || params.State != expectedState {
		s.logger.Warn("federated login state mismatch")
		return nil, fmt.Errorf("%w: state mismatch", ErrAuthState)
	}

	if params.Error != "" {
		s.logger.Warn("federated login provider error",
			zap.String("error", params.Error),
			zap.String("description", params.ErrorDescription),
		)
		return nil, fmt.Errorf("%w: %s", ErrAuthState, params.Error)
	}

	if params.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrAuthState)
	}

	tokens, err := s.exchanger.Exchange(ctx, params.Code)
	if err != nil {
		s.logger.Warn("token exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: token exchange failed", ErrAuthState)
	}

	claims, err := s.verifier.Verify(tokens.IDToken)
	if err != nil {
		s.logger.Warn("id_token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: invalid id_token", ErrAuthState)
	}

	user, err := s.provisionUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	cache, err := tokens.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token cache: %w", err)
	}

	sess.UserID = &user.ID
	sess.Claims = claims
	sess.TokenCache = cache

	s.logger.Info("federated login",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
	)

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// LogoutURL returns the provider logout URL for federated sessions, so the
// client can end the Microsoft web session as well. Empty for local logins.
func (s *AuthService) LogoutURL(sess *auth.Session, postLogoutRedirect string) string {
	if sess == nil || !sess.Federated() {
		return ""
	}
	return s.exchanger.LogoutURL(postLogoutRedirect)
}

// provisionUser finds the local account matching the federated identity,
// creating it on first login.
func (s *AuthService) provisionUser(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	username := claims.Identity()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &domain.User{Username: username}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.logger.Info("federated user provisioned",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return user, nil
}
