package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix   = "user:%d"
	CountsKeyPrefix = "user:%d:counts"
)

const (
	UserTTL   = 5 * time.Minute
	CountsTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func CountsKey(userID uint) string {
	return fmt.Sprintf(CountsKeyPrefix, userID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUser drops the cached profile and counters for each user.
func InvalidateUser(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, UserKey(id), CountsKey(id))
	}
	Invalidate(ctx, keys...)
}

// InvalidateCounts drops only the cached counters for each user.
func InvalidateCounts(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, CountsKey(id))
	}
	Invalidate(ctx, keys...)
}
