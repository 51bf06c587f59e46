// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"warbler/internal/cache"
	"warbler/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and follow edges.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Search(ctx context.Context, q string, limit, offset int) ([]models.User, error)

	Following(ctx context.Context, id uint) ([]models.User, error)
	Followers(ctx context.Context, id uint) ([]models.User, error)
	FollowingIDs(ctx context.Context, id uint) ([]uint, error)
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
	Follow(ctx context.Context, followerID, followedID uint) error
	Unfollow(ctx context.Context, followerID, followedID uint) error
	Counts(ctx context.Context, id uint) (*models.UserCounts, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// profileColumns are the columns Update writes. The password hash is not
// among them: cached users carry no hash.
var profileColumns = []string{"username", "email", "image_url", "header_image_url", "bio", "location", "updated_at"}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername returns nil, nil when no user has the name.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	switch {
	case strings.TrimSpace(user.Username) == "":
		return models.NewConstraintError("username is required", nil)
	case strings.TrimSpace(user.Email) == "":
		return models.NewConstraintError("email is required", nil)
	case user.Password == "":
		return models.NewConstraintError("password is required", nil)
	}

	return translateWriteError("User", r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Email) == "" {
		return models.NewConstraintError("username and email are required", nil)
	}

	res := r.db.WithContext(ctx).Model(user).Select(profileColumns).Updates(user)
	if res.Error != nil {
		return translateWriteError("User", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

// Delete removes the user and everything hanging off it in one transaction:
// likes given, likes received on the user's messages, follow edges in both
// directions and the user's messages.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	var neighbours []uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return err
		}

		if err := tx.Model(&models.Follow{}).
			Where("user_being_followed_id = ?", id).
			Pluck("user_following_id", &neighbours).Error; err != nil {
			return err
		}
		var followed []uint
		if err := tx.Model(&models.Follow{}).
			Where("user_following_id = ?", id).
			Pluck("user_being_followed_id", &followed).Error; err != nil {
			return err
		}
		neighbours = append(neighbours, followed...)

		ownMessages := tx.Model(&models.Message{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("user_id = ? OR message_id IN (?)", id, ownMessages).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_following_id = ? OR user_being_followed_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, id)
	// Other users' counters may include likes on the deleted messages; only
	// follow neighbours are known cheaply, the rest expire with CountsTTL.
	cache.InvalidateCounts(ctx, neighbours...)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset)

	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Search(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return r.List(ctx, limit, offset)
	}
	limit, offset = clampPage(limit, offset)

	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", pattern).
		Order("id ASC").Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *userRepository) Following(ctx context.Context, id uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.user_being_followed_id = users.id").
		Where("follows.user_following_id = ?", id).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Followers(ctx context.Context, id uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.user_following_id = users.id").
		Where("follows.user_being_followed_id = ?", id).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) FollowingIDs(ctx context.Context, id uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_following_id = ?", id).
		Pluck("user_being_followed_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *userRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_following_id = ? AND user_being_followed_id = ?", followerID, followedID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Follow adds the edge; following twice is a no-op.
func (r *userRepository) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == 0 || followedID == 0 {
		return models.NewConstraintError("both users are required", nil)
	}
	if followerID == followedID {
		return models.NewValidationError("You cannot follow yourself")
	}

	follow := models.Follow{UserFollowingID: followerID, UserBeingFollowedID: followedID}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&follow).Error
	if err != nil {
		return translateWriteError("Follow", err)
	}
	cache.InvalidateCounts(ctx, followerID, followedID)
	return nil
}

// Unfollow removes the edge if present.
func (r *userRepository) Unfollow(ctx context.Context, followerID, followedID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_following_id = ? AND user_being_followed_id = ?", followerID, followedID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCounts(ctx, followerID, followedID)
	return nil
}

func (r *userRepository) Counts(ctx context.Context, id uint) (*models.UserCounts, error) {
	var counts models.UserCounts

	err := cache.Aside(ctx, cache.CountsKey(id), &counts, cache.CountsTTL, func() error {
		db := r.db.WithContext(ctx)
		if err := db.Model(&models.Message{}).Where("user_id = ?", id).Count(&counts.Messages).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := db.Model(&models.Follow{}).Where("user_following_id = ?", id).Count(&counts.Following).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := db.Model(&models.Follow{}).Where("user_being_followed_id = ?", id).Count(&counts.Followers).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := db.Model(&models.Like{}).Where("user_id = ?", id).Count(&counts.Likes).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
