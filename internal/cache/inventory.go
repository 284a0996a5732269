package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	UserKeyPrefix        = "user:%d"
	UserStatsKeyPrefix   = "user:%d:stats"
	ArticleKeyPrefix     = "article:%s"
	QuestionKeyPrefix    = "question:%d"
	MarkdownKeyPrefix    = "md:%016x"
	listVersionKeyPrefix = "listver:%s"
	listKeyPrefix        = "list:%s:v%d:%016x"
	NamespaceArticles    = "articles"
	NamespaceQuestions   = "questions"
	NamespacePopularTags = "tags"
)

const (
	UserTTL      = 5 * time.Minute
	UserStatsTTL = time.Minute
	ArticleTTL   = 5 * time.Minute
	QuestionTTL  = 2 * time.Minute
	ListTTL      = time.Minute
	MarkdownTTL  = time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UserStatsKey(userID uint) string {
	return fmt.Sprintf(UserStatsKeyPrefix, userID)
}

func ArticleKey(slug string) string {
	return fmt.Sprintf(ArticleKeyPrefix, slug)
}

func QuestionKey(id uint) string {
	return fmt.Sprintf(QuestionKeyPrefix, id)
}

// MarkdownKey addresses rendered HTML by the hash of its source.
func MarkdownKey(source string) string {
	return fmt.Sprintf(MarkdownKeyPrefix, xxhash.Sum64String(source))
}

// ListKey builds a key for one page of a list. Lists in a namespace are
// invalidated together by BumpNamespace, which changes the version embedded here.
func ListKey(ctx context.Context, namespace string, parts ...string) string {
	return fmt.Sprintf(listKeyPrefix, namespace, namespaceVersion(ctx, namespace), xxhash.Sum64String(strings.Join(parts, "|")))
}

func namespaceVersion(ctx context.Context, namespace string) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, fmt.Sprintf(listVersionKeyPrefix, namespace)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// BumpNamespace invalidates every list cached under namespace.
func BumpNamespace(ctx context.Context, namespace string) {
	if client != nil {
		client.Incr(ctx, fmt.Sprintf(listVersionKeyPrefix, namespace))
	}
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID), UserStatsKey(userID))
}

func InvalidateArticle(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, ArticleKey(s))
	}
	Invalidate(ctx, keys...)
	BumpNamespace(ctx, NamespaceArticles)
	BumpNamespace(ctx, NamespacePopularTags)
}

func InvalidateQuestion(ctx context.Context, id uint) {
	Invalidate(ctx, QuestionKey(id))
	BumpNamespace(ctx, NamespaceQuestions)
}
