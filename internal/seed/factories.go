// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"warbler/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the plain-text password every seeded user shares.
const DefaultPassword = "password123"

var usernameJunk = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the Seeder and by tests.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	hash    string
	maxDays int
	seq     int
}

// NewFactory creates a Factory bound to db. The shared password is hashed
// once up front.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	opts = opts.withDefaults()

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	return &Factory{
		db:      db,
		faker:   gofakeit.New(opts.RandSeed),
		hash:    string(hash),
		maxDays: opts.MaxDays,
	}, nil
}

// BuildUser returns an unsaved user with fake profile fields.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.seq++
	username := f.username()
	user := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@" + f.faker.DomainName(),
		Password: f.hash,
		Bio:      f.faker.Sentence(8),
		Location: f.faker.City(),
	}
	if f.faker.Bool() {
		user.HeaderImageURL = f.faker.ImageURL(1200, 300)
	}

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildMessage returns an unsaved message by author, timestamped somewhere
// in the last maxDays days.
func (f *Factory) BuildMessage(author *models.User, overrides ...func(*models.Message)) *models.Message {
	msg := &models.Message{
		Text:      clip(f.faker.HipsterSentence(f.faker.Number(3, 14)), models.MaxMessageLength),
		UserID:    author.ID,
		Timestamp: f.pastTime(),
	}
	for _, override := range overrides {
		override(msg)
	}
	return msg
}

// CreateMessages persists messages in batches.
func (f *Factory) CreateMessages(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(msgs, 200).Error
}

// CreateFollow records that follower follows followed. Existing edges are
// left alone.
func (f *Factory) CreateFollow(ctx context.Context, follower, followed *models.User) error {
	if follower.ID == followed.ID {
		return fmt.Errorf("user %d cannot follow themselves", follower.ID)
	}
	follow := &models.Follow{UserFollowingID: follower.ID, UserBeingFollowedID: followed.ID}
	return f.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(follow).Error
}

// CreateLike records that user likes msg. Users never like their own
// messages.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, msg *models.Message) error {
	if msg.UserID == user.ID {
		return fmt.Errorf("user %d cannot like their own message %d", user.ID, msg.ID)
	}
	like := &models.Like{UserID: user.ID, MessageID: msg.ID}
	return f.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
}

// username returns a unique, validation-safe handle.
func (f *Factory) username() string {
	base := usernameJunk.ReplaceAllString(f.faker.Username(), "")
	if len(base) < 3 {
		base += "warbler"
	}
	if len(base) > 30 {
		base = base[:30]
	}
	return fmt.Sprintf("%s%d", base, f.seq)
}

func (f *Factory) pastTime() time.Time {
	minutes := f.faker.Number(0, f.maxDays*24*60)
	return time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
}

// clip trims s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
