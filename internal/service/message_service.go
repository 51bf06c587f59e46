package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository) *MessageService {
	return &MessageService{messageRepo: messageRepo, userRepo: userRepo}
}

// Create posts text as authorID.
func (s *MessageService) Create(ctx context.Context, authorID uint, text string) (*models.Message, error) {
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx, span := observability.StartSpan(ctx, "messages.Create", attribute.Int64("user.id", int64(authorID)))
	msg := &models.Message{UserID: authorID, Text: text}
	err := s.messageRepo.Create(ctx, msg)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Get(ctx context.Context, id uint) (*models.Message, error) {
	return s.messageRepo.GetByID(ctx, id)
}

// Delete removes the message if actorID wrote it. Anyone else gets a
// FORBIDDEN error and the message is untouched.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uint) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.UserID != actorID {
		return models.NewForbiddenError("You can only delete your own messages")
	}

	ctx, span := observability.StartSpan(ctx, "messages.Delete", attribute.Int64("message.id", int64(messageID)))
	err = s.messageRepo.Delete(ctx, messageID)
	observability.EndSpan(span, err)
	return err
}

// Timeline returns the newest messages from userID and everyone they follow.
func (s *MessageService) Timeline(ctx context.Context, userID uint) ([]models.Message, error) {
	ids, err := s.userRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.messageRepo.Timeline(ctx, append(ids, userID), repository.TimelineSize)
}

func (s *MessageService) Like(ctx context.Context, userID, messageID uint) error {
	return s.messageRepo.Like(ctx, userID, messageID)
}

func (s *MessageService) Unlike(ctx context.Context, userID, messageID uint) error {
	return s.messageRepo.Unlike(ctx, userID, messageID)
}

// LikedMessages returns the profile owner and the messages they like.
func (s *MessageService) LikedMessages(ctx context.Context, userID uint) (*models.User, []models.Message, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messageRepo.LikedMessages(ctx, userID)
	return user, messages, err
}

// LikedSet returns the IDs of messages userID likes, for marking buttons.
func (s *MessageService) LikedSet(ctx context.Context, userID uint) (map[uint]bool, error) {
	ids, err := s.messageRepo.LikedMessageIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
