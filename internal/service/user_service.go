package service

import (
	"context"
	"strings"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type UserService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	auth        *AuthService
}

// UpdateProfileInput is the profile form. Password must be the user's
// current password.
type UpdateProfileInput struct {
	UserID         uint
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

// Profile is everything a profile page shows.
type Profile struct {
	User     *models.User
	Counts   *models.UserCounts
	Messages []models.Message
}

// profileMessageLimit bounds the messages listed on a profile page.
const profileMessageLimit = 100

func NewUserService(userRepo repository.UserRepository, messageRepo repository.MessageRepository, auth *AuthService) *UserService {
	return &UserService{userRepo: userRepo, messageRepo: messageRepo, auth: auth}
}

// ListUsers returns a page of users, filtered by username when q is set.
func (s *UserService) ListUsers(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	if strings.TrimSpace(q) == "" {
		return s.userRepo.List(ctx, limit, offset)
	}
	return s.userRepo.Search(ctx, q, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.userRepo.Counts(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListByUser(ctx, id, profileMessageLimit)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Counts: counts, Messages: messages}, nil
}

// Following returns the profile owner and the users they follow.
func (s *UserService) Following(ctx context.Context, id uint) (*models.User, []models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.userRepo.Following(ctx, id)
	return user, users, err
}

// Followers returns the profile owner and the users following them.
func (s *UserService) Followers(ctx context.Context, id uint) (*models.User, []models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.userRepo.Followers(ctx, id)
	return user, users, err
}

// FollowingSet returns the IDs userID follows, for marking buttons.
func (s *UserService) FollowingSet(ctx context.Context, userID uint) (map[uint]bool, error) {
	ids, err := s.userRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (s *UserService) Follow(ctx context.Context, followerID, followedID uint) error {
	ctx, span := observability.StartSpan(ctx, "users.Follow",
		attribute.Int64("follower.id", int64(followerID)),
		attribute.Int64("followed.id", int64(followedID)),
	)
	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		observability.EndSpan(span, err)
		return err
	}
	err := s.userRepo.Follow(ctx, followerID, followedID)
	observability.EndSpan(span, err)
	return err
}

func (s *UserService) Unfollow(ctx context.Context, followerID, followedID uint) error {
	return s.userRepo.Unfollow(ctx, followerID, followedID)
}

// UpdateProfile applies the form after re-checking the current password.
// A wrong password returns an UNAUTHORIZED error and changes nothing.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	current, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.auth.Authenticate(ctx, current.Username, in.Password)
	if err != nil {
		return nil, err
	}
	if !result.OK() || result.User.ID != current.ID {
		return nil, models.NewUnauthorizedError("Invalid password")
	}

	updated := *result.User
	updated.Username = strings.TrimSpace(in.Username)
	updated.Email = strings.TrimSpace(in.Email)
	updated.ImageURL = strings.TrimSpace(in.ImageURL)
	updated.HeaderImageURL = strings.TrimSpace(in.HeaderImageURL)
	updated.Bio = strings.TrimSpace(in.Bio)
	updated.Location = strings.TrimSpace(in.Location)

	if err := validation.ValidateUsername(updated.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(updated.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(updated.ImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(updated.HeaderImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateProfileText(updated.Bio, updated.Location); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.userRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAccount removes the user and everything they own.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	ctx, span := observability.StartSpan(ctx, "users.DeleteAccount", attribute.Int64("user.id", int64(userID)))
	err := s.userRepo.Delete(ctx, userID)
	observability.EndSpan(span, err)
	return err
}
