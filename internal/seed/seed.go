package seed

import (
	"context"
	"fmt"
	"log/slog"

	"warbler/internal/cache"
	"warbler/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Users           int
	MessagesPerUser int
	FollowsPerUser  int
	LikesPerUser    int
	MaxDays         int
	Password        string
	BcryptCost      int
	RandSeed        int64
	Clean           bool
	Logger          *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Summary reports what a seeding run created.
type Summary struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

// Seeder fills the database with a random social graph.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	opts = opts.withDefaults()
	factory, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: factory, opts: opts}, nil
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll removes every row the application owns, children first, then
// evicts the cached profiles and counters of the removed users.
func (s *Seeder) ClearAll(ctx context.Context) error {
	s.opts.Logger.InfoContext(ctx, "clearing existing data")

	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Message{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", model, err)
		}
	}

	cache.InvalidateUser(ctx, userIDs...)
	return nil
}

// Run creates users, then their messages, then follows and likes between
// them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log := s.opts.Logger
	log.InfoContext(ctx, "starting database seeding",
		slog.Int("users", s.opts.Users),
		slog.Int("messages_per_user", s.opts.MessagesPerUser),
	)

	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	messages, err := s.seedMessages(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages: %w", err)
	}
	follows, err := s.seedFollows(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}
	likes, err := s.seedLikes(ctx, users, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to create likes: %w", err)
	}

	summary := &Summary{Users: len(users), Messages: len(messages), Follows: follows, Likes: likes}
	log.InfoContext(ctx, "database seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("messages", summary.Messages),
		slog.Int("follows", summary.Follows),
		slog.Int("likes", summary.Likes),
	)
	return summary, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		user, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedMessages(ctx context.Context, users []*models.User) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0, len(users)*s.opts.MessagesPerUser)
	for _, user := range users {
		for i := 0; i < s.opts.MessagesPerUser; i++ {
			msgs = append(msgs, s.factory.BuildMessage(user))
		}
	}
	if err := s.factory.CreateMessages(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	created := 0
	for i, user := range users {
		for _, j := range s.pick(len(users), s.opts.FollowsPerUser, func(j int) bool { return j == i }) {
			if err := s.factory.CreateFollow(ctx, user, users[j]); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []*models.User, msgs []*models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	created := 0
	for _, user := range users {
		own := func(j int) bool { return msgs[j].UserID == user.ID }
		for _, j := range s.pick(len(msgs), s.opts.LikesPerUser, own) {
			if err := s.factory.CreateLike(ctx, user, msgs[j]); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

// pick returns up to want distinct indexes in [0, n) for which skip is false.
func (s *Seeder) pick(n, want int, skip func(int) bool) []int {
	if want <= 0 {
		return nil
	}
	candidates := make([]int, 0, n)
	for j := 0; j < n; j++ {
		if !skip(j) {
			candidates = append(candidates, j)
		}
	}
	s.factory.faker.ShuffleAnySlice(candidates)
	if want < len(candidates) {
		candidates = candidates[:want]
	}
	return candidates
}
