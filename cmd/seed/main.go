// Command main fills the Warbler database with fake users, messages,
// follows and likes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/middleware"
	"warbler/internal/seed"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var opts seed.Options

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the Warbler database with demo data",
	Long: `Populate the Warbler database with fake users and a random social graph.

Every seeded user shares the password "` + seed.DefaultPassword + `".

Examples:
  seed --users 50 --messages 10        # Add 50 users with 10 messages each
  seed --clean --users 20              # Wipe existing rows first
  seed clear                           # Remove all rows and exit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *gorm.DB) error {
			s, err := seed.NewSeeder(db, opts)
			if err != nil {
				return err
			}
			summary, err := s.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d users, %d messages, %d follows, %d likes\n",
				summary.Users, summary.Messages, summary.Follows, summary.Likes)
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every user, message, follow and like",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *gorm.DB) error {
			s, err := seed.NewSeeder(db, opts)
			if err != nil {
				return err
			}
			return s.ClearAll(ctx)
		})
	},
}

func init() {
	rootCmd.Flags().IntVar(&opts.Users, "users", 50, "Number of users to create")
	rootCmd.Flags().IntVar(&opts.MessagesPerUser, "messages", 10, "Messages per user")
	rootCmd.Flags().IntVar(&opts.FollowsPerUser, "follows", 8, "Users each user follows")
	rootCmd.Flags().IntVar(&opts.LikesPerUser, "likes", 15, "Messages each user likes")
	rootCmd.Flags().IntVar(&opts.MaxDays, "days", 30, "Spread message timestamps over this many days")
	rootCmd.Flags().Int64Var(&opts.RandSeed, "rand-seed", 0, "Random seed (0 picks a random one)")
	rootCmd.Flags().BoolVar(&opts.Clean, "clean", false, "Clean database before seeding")

	rootCmd.AddCommand(clearCmd)
}

// withDB loads configuration, connects and migrates, attaches the cache,
// then runs fn.
func withDB(ctx context.Context, fn func(context.Context, *gorm.DB) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))
	opts.Logger = middleware.Logger

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	// Cached profiles of removed users are evicted when Redis is reachable.
	if err := cache.InitRedis(cfg.RedisURL); err != nil {
		middleware.Logger.Warn("redis unavailable, cached users will expire on their own",
			slog.String("error", err.Error()))
	} else {
		defer func() { _ = cache.GetClient().Close() }()
	}
	return fn(ctx, db)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
