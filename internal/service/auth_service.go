// Package service contains the application's business rules, sitting between
// HTTP handlers and repositories.
package service

import (
	"context"
	"errors"
	"strings"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// AuthStatus is the outcome of a credential check.
type AuthStatus int

const (
	AuthOK AuthStatus = iota
	AuthUnknownUser
	AuthBadPassword
)

func (s AuthStatus) String() string {
	switch s {
	case AuthOK:
		return "ok"
	case AuthUnknownUser:
		return "unknown_user"
	case AuthBadPassword:
		return "bad_password"
	default:
		return "unknown"
	}
}

// AuthResult reports whether credentials matched and, if so, whose they were.
type AuthResult struct {
	Status AuthStatus
	User   *models.User
}

// OK reports a successful match.
func (r AuthResult) OK() bool {
	return r.Status == AuthOK && r.User != nil
}

// SignupInput is the signup form.
type SignupInput struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

// AuthService hashes passwords, registers users and checks credentials.
type AuthService struct {
	userRepo repository.UserRepository
	cost     int
	// dummyHash is compared against when the username is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return newAuthService(userRepo, bcrypt.DefaultCost)
}

func newAuthService(userRepo repository.UserRepository, cost int) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("warbler-unknown-user"), cost)
	return &AuthService{userRepo: userRepo, cost: cost, dummyHash: dummy}
}

// Signup builds a new, unsaved user with a bcrypt hash of password.
// An empty imageURL falls back to the default profile image.
func (s *AuthService) Signup(username, email, password, imageURL string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if imageURL == "" {
		imageURL = models.DefaultImageURL
	}
	return &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		ImageURL: imageURL,
	}, nil
}

// Register persists a user built by Signup. Taken usernames or emails
// surface as a CONFLICT error.
func (s *AuthService) Register(ctx context.Context, user *models.User) error {
	ctx, span := observability.StartSpan(ctx, "auth.Register")
	err := s.userRepo.Create(ctx, user)
	observability.EndSpan(span, err)
	return err
}

// SignupUser validates the form, then signs up and registers the user.
func (s *AuthService) SignupUser(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(in.ImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.Signup(in.Username, in.Email, in.Password, in.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := s.Register(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks username and password. Wrong credentials are a
// result, not an error; only store failures return an error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.Authenticate")

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		observability.EndSpan(span, err)
		return AuthResult{}, err
	}

	result := AuthResult{Status: AuthOK, User: user}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		result = AuthResult{Status: AuthUnknownUser}
	} else if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			// A malformed stored hash cannot match anything.
			span.RecordError(err)
		}
		result = AuthResult{Status: AuthBadPassword}
	}

	span.SetAttributes(attribute.String("auth.status", result.Status.String()))
	span.End()
	return result, nil
}
