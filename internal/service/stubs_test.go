package service

import (
	"context"
	"testing"

	"warbler/internal/models"

	"github.com/stretchr/testify/require"
)

type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	deleteFn        func(context.Context, uint) error
	listFn          func(context.Context, int, int) ([]models.User, error)
	searchFn        func(context.Context, string, int, int) ([]models.User, error)
	followingFn     func(context.Context, uint) ([]models.User, error)
	followersFn     func(context.Context, uint) ([]models.User, error)
	followingIDsFn  func(context.Context, uint) ([]uint, error)
	isFollowingFn   func(context.Context, uint, uint) (bool, error)
	followFn        func(context.Context, uint, uint) error
	unfollowFn      func(context.Context, uint, uint) error
	countsFn        func(context.Context, uint) (*models.UserCounts, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) Search(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	return s.searchFn(ctx, q, limit, offset)
}
func (s *userRepoStub) Following(ctx context.Context, id uint) ([]models.User, error) {
	return s.followingFn(ctx, id)
}
func (s *userRepoStub) Followers(ctx context.Context, id uint) ([]models.User, error) {
	return s.followersFn(ctx, id)
}
func (s *userRepoStub) FollowingIDs(ctx context.Context, id uint) ([]uint, error) {
	return s.followingIDsFn(ctx, id)
}
func (s *userRepoStub) IsFollowing(ctx context.Context, a, b uint) (bool, error) {
	return s.isFollowingFn(ctx, a, b)
}
func (s *userRepoStub) Follow(ctx context.Context, a, b uint) error {
	return s.followFn(ctx, a, b)
}
func (s *userRepoStub) Unfollow(ctx context.Context, a, b uint) error {
	return s.unfollowFn(ctx, a, b)
}
func (s *userRepoStub) Counts(ctx context.Context, id uint) (*models.UserCounts, error) {
	return s.countsFn(ctx, id)
}

// noopUserRepo returns a stub whose methods succeed with zero values.
func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn:        func(context.Context, *models.User) error { return nil },
		updateFn:        func(context.Context, *models.User) error { return nil },
		deleteFn:        func(context.Context, uint) error { return nil },
		listFn:          func(context.Context, int, int) ([]models.User, error) { return nil, nil },
		searchFn:        func(context.Context, string, int, int) ([]models.User, error) { return nil, nil },
		followingFn:     func(context.Context, uint) ([]models.User, error) { return nil, nil },
		followersFn:     func(context.Context, uint) ([]models.User, error) { return nil, nil },
		followingIDsFn:  func(context.Context, uint) ([]uint, error) { return nil, nil },
		isFollowingFn:   func(context.Context, uint, uint) (bool, error) { return false, nil },
		followFn:        func(context.Context, uint, uint) error { return nil },
		unfollowFn:      func(context.Context, uint, uint) error { return nil },
		countsFn:        func(context.Context, uint) (*models.UserCounts, error) { return &models.UserCounts{}, nil },
	}
}

type messageRepoStub struct {
	createFn          func(context.Context, *models.Message) error
	getByIDFn         func(context.Context, uint) (*models.Message, error)
	deleteFn          func(context.Context, uint) error
	listByUserFn      func(context.Context, uint, int) ([]models.Message, error)
	timelineFn        func(context.Context, []uint, int) ([]models.Message, error)
	likeFn            func(context.Context, uint, uint) error
	unlikeFn          func(context.Context, uint, uint) error
	isLikedFn         func(context.Context, uint, uint) (bool, error)
	likedMessagesFn   func(context.Context, uint) ([]models.Message, error)
	likedMessageIDsFn func(context.Context, uint) ([]uint, error)
}

func (s *messageRepoStub) Create(ctx context.Context, msg *models.Message) error {
	return s.createFn(ctx, msg)
}
func (s *messageRepoStub) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	return s.getByIDFn(ctx, id)
}
func (s *messageRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *messageRepoStub) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	return s.listByUserFn(ctx, userID, limit)
}
func (s *messageRepoStub) Timeline(ctx context.Context, userIDs []uint, limit int) ([]models.Message, error) {
	return s.timelineFn(ctx, userIDs, limit)
}
func (s *messageRepoStub) Like(ctx context.Context, userID, messageID uint) error {
	return s.likeFn(ctx, userID, messageID)
}
func (s *messageRepoStub) Unlike(ctx context.Context, userID, messageID uint) error {
	return s.unlikeFn(ctx, userID, messageID)
}
func (s *messageRepoStub) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, messageID)
}
func (s *messageRepoStub) LikedMessages(ctx context.Context, userID uint) ([]models.Message, error) {
	return s.likedMessagesFn(ctx, userID)
}
func (s *messageRepoStub) LikedMessageIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.likedMessageIDsFn(ctx, userID)
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}
