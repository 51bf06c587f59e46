package repository

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"warbler/internal/cache"
	"warbler/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimelineSize is how many messages the home timeline shows.
const TimelineSize = 100

// MessageRepository defines persistence operations for messages and likes.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Message, error)
	Timeline(ctx context.Context, userIDs []uint, limit int) ([]models.Message, error)

	Like(ctx context.Context, userID, messageID uint) error
	Unlike(ctx context.Context, userID, messageID uint) error
	IsLiked(ctx context.Context, userID, messageID uint) (bool, error)
	LikedMessages(ctx context.Context, userID uint) ([]models.Message, error)
	LikedMessageIDs(ctx context.Context, userID uint) ([]uint, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts msg. A message needs an author and non-empty text of at
// most MaxMessageLength characters; the author must exist.
func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	switch {
	case msg.UserID == 0:
		return models.NewConstraintError("message author is required", nil)
	case strings.TrimSpace(msg.Text) == "":
		return models.NewConstraintError("message text is required", nil)
	case utf8.RuneCountInString(msg.Text) > models.MaxMessageLength:
		return models.NewValidationError("message text is too long")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
	if err != nil {
		return translateWriteError("Message", err)
	}
	cache.InvalidateCounts(ctx, msg.UserID)
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("User").First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// Delete removes the message and its likes together.
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	var msg models.Message
	var likers []uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "user_id").First(&msg, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Message", id)
			}
			return err
		}
		if err := tx.Model(&models.Like{}).Where("message_id = ?", id).Pluck("user_id", &likers).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Message{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateCounts(ctx, append(likers, msg.UserID)...)
	return nil
}

func (r *messageRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	limit, _ = clampPage(limit, 0)

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("messages.timestamp DESC, messages.id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// Timeline returns the newest messages written by any of userIDs.
func (r *messageRepository) Timeline(ctx context.Context, userIDs []uint, limit int) ([]models.Message, error) {
	if len(userIDs) == 0 {
		return []models.Message{}, nil
	}
	if limit <= 0 || limit > TimelineSize {
		limit = TimelineSize
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id IN ?", userIDs).
		Order("messages.timestamp DESC, messages.id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// Like records that userID likes messageID; liking twice is a no-op.
// Users cannot like their own messages.
func (r *messageRepository) Like(ctx context.Context, userID, messageID uint) error {
	if userID == 0 || messageID == 0 {
		return models.NewConstraintError("user and message are required", nil)
	}

	msg, err := r.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.UserID == userID {
		return models.NewValidationError("You cannot like your own message")
	}

	like := models.Like{UserID: userID, MessageID: messageID}
	err = r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like).Error
	if err != nil {
		return translateWriteError("Like", err)
	}
	cache.InvalidateCounts(ctx, userID)
	return nil
}

// Unlike removes the like if present.
func (r *messageRepository) Unlike(ctx context.Context, userID, messageID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Like{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCounts(ctx, userID)
	return nil
}

func (r *messageRepository) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *messageRepository) LikedMessages(ctx context.Context, userID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ?", userID).
		Order("messages.timestamp DESC, messages.id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) LikedMessageIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ?", userID).
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
