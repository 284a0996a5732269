// Package service provides application business logic (articles, news, messages, Q&A, etc.).
package service

import (
	"context"
	"log/slog"
	"strings"

	"zanhu/internal/middleware"
	"zanhu/internal/notifications"
)

// Publisher pushes realtime events. *notifications.Notifier satisfies it.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, ev notifications.Event) error
	PublishGroup(ctx context.Context, ev notifications.Event) error
}

// Page sizes of the list views.
const (
	NewsPageSize     = 20
	ArticlePageSize  = 10
	QuestionPageSize = 10
)

const maxContentLen = 50000

// pageOffset converts a 1-based page number into a row offset.
func pageOffset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// publishQuietly sends ev and logs failures. A failed push never fails the request.
func publishQuietly(ctx context.Context, send func() error, key string) {
	if err := send(); err != nil {
		middleware.Logger.WarnContext(ctx, "realtime publish failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
