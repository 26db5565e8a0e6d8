package users

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"certiresume-backend/internal/shared/auth"
	"certiresume-backend/internal/shared/telemetry"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,32}$`)
)

// Service handles registration and login. Passwords are bcrypt-hashed before
// they reach the repo.
type Service struct {
	repo   Repo
	tokens *auth.Tokens
}

func NewService(repo Repo, tokens *auth.Tokens) *Service {
	return &Service{repo: repo, tokens: tokens}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Register creates an account and returns it with a signed token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := validateRegistration(in); err != nil {
		return AuthResult{}, err
	}
	if _, err := s.repo.FindByEmailOrUsername(ctx, in.Email, in.Username); err == nil {
		return AuthResult{}, ErrDuplicateUser
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, err
	}
	user, err := s.repo.Create(ctx, User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return AuthResult{}, err
	}
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return s.authResult(user)
}

// Login verifies credentials by email or username and returns a signed token.
// Missing users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	user, err := s.repo.FindByEmailOrUsername(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.authResult(user)
}

func (s *Service) authResult(user User) (AuthResult, error) {
	token, err := s.tokens.Sign(user.ID, user.Username, user.Email)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token}, nil
}

func validateRegistration(in RegisterInput) error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if !usernamePattern.MatchString(in.Username) {
		return &ValidationError{Field: "username", Reason: "must be 3-32 characters (letters, digits, _ . -)"}
	}
	if !emailPattern.MatchString(in.Email) {
		return &ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if len(in.Password) < 8 {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return nil
}
