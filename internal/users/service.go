package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/prepvoice/prepvoice/internal/models"
)

var (
	// ErrEmailTaken is returned when signup hits an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrWeakPassword is returned when the password fails the minimum policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrMissingFields is returned when required signup fields are blank.
	ErrMissingFields = errors.New("name and email are required")
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// SignUp registers a local account with a bcrypt-hashed password.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, ErrMissingFields
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	// Pre-check gives a friendly error; the unique index still guards races.
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	return s.repo.Create(ctx, u)
}

// Authenticate verifies an email/password pair. Returns (nil, nil) when the
// credentials do not match so callers can answer with a uniform 401.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	u := &models.User{
		Sub:   sub,
		Email: normalizeEmail(email),
		Name:  name,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
