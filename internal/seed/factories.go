// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"zanhu/internal/models"
	"zanhu/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password123!"

var tagPool = []string{
	"go", "python", "django", "redis", "postgres", "docker", "kubernetes",
	"frontend", "career", "linux", "testing", "design", "security", "websocket",
}

// Factory builds domain entities and persists them through the repositories.
// It is a thin helper used by the Seeder and by tests.
type Factory struct {
	db       *gorm.DB
	opts     Options
	rnd      *rand.Rand
	password string

	users    repository.UserRepository
	news     repository.NewsRepository
	articles repository.ArticleRepository
	qa       repository.QARepository
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)

	f := &Factory{
		db: db,
		//nolint:gosec // Weak random number generator is fine for seeding
		rnd:  rand.New(rand.NewSource(seed)),
		opts: opts,
	}
	if db != nil {
		f.users = repository.NewUserRepository(db)
		f.news = repository.NewNewsRepository(db)
		f.articles = repository.NewArticleRepository(db)
		f.qa = repository.NewQARepository(db)
	}
	return f
}

// backdate returns a creation time spread over the last MaxDays days.
func (f *Factory) backdate() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rnd.Intn(maxDays)
	hoursBack := f.rnd.Intn(24)
	minsBack := f.rnd.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)
}

func (f *Factory) hashedPassword() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.password == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		f.password = string(hash)
	}
	return f.password, nil
}

// Tags picks between one and three distinct tags from the pool.
func (f *Factory) Tags() []string {
	n := f.rnd.Intn(3) + 1
	picked := make([]string, 0, n)
	for _, i := range f.rnd.Perm(len(tagPool))[:n] {
		picked = append(picked, tagPool[i])
	}
	return picked
}

// BuildUser constructs a sample user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		Nickname:     gofakeit.Name(),
		JobTitle:     truncate(gofakeit.JobTitle(), 50),
		Introduction: gofakeit.Sentence(12),
		Picture:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Location:     truncate(gofakeit.City(), 50),
		PersonalURL:  gofakeit.URL(),
		Github:       "https://github.com/" + username,
		CreatedAt:    f.backdate(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user whose password is DefaultPassword.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	hash, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}
	user.Password = hash

	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildNews constructs a root news post for user without persisting it.
func (f *Factory) BuildNews(user *models.User, overrides ...func(*models.News)) *models.News {
	userID := user.ID
	news := &models.News{
		UserID:    &userID,
		Content:   gofakeit.Sentence(f.rnd.Intn(20) + 5),
		CreatedAt: f.backdate(),
	}
	for _, override := range overrides {
		override(news)
	}
	return news
}

func (f *Factory) CreateNews(ctx context.Context, user *models.User, overrides ...func(*models.News)) (*models.News, error) {
	news := f.BuildNews(user, overrides...)
	if err := f.news.Create(ctx, news); err != nil {
		return nil, err
	}
	return news, nil
}

// BuildArticle constructs an article with a markdown body. Roughly one in five is a draft.
func (f *Factory) BuildArticle(user *models.User, overrides ...func(*models.Article)) *models.Article {
	userID := user.ID
	status := models.ArticlePublished
	if f.rnd.Intn(5) == 0 {
		status = models.ArticleDraft
	}
	article := &models.Article{
		Title:     strings.TrimSuffix(gofakeit.Sentence(f.rnd.Intn(5)+3), "."),
		UserID:    &userID,
		Image:     fmt.Sprintf("https://picsum.photos/seed/%s/800/400", gofakeit.UUID()),
		Status:    status,
		Content:   markdownBody(),
		CreatedAt: f.backdate(),
	}
	for _, override := range overrides {
		override(article)
	}
	return article
}

func (f *Factory) CreateArticle(ctx context.Context, user *models.User, overrides ...func(*models.Article)) (*models.Article, error) {
	article := f.BuildArticle(user, overrides...)
	if err := f.articles.Create(ctx, article, f.Tags()); err != nil {
		return nil, err
	}
	return article, nil
}

// BuildQuestion constructs an open question with a markdown body.
func (f *Factory) BuildQuestion(user *models.User, overrides ...func(*models.Question)) *models.Question {
	q := &models.Question{
		UserID:    user.ID,
		Title:     strings.TrimSuffix(gofakeit.Question(), "?") + "?",
		Status:    models.QuestionOpen,
		Content:   markdownBody(),
		CreatedAt: f.backdate(),
	}
	for _, override := range overrides {
		override(q)
	}
	return q
}

func (f *Factory) CreateQuestion(ctx context.Context, user *models.User, overrides ...func(*models.Question)) (*models.Question, error) {
	q := f.BuildQuestion(user, overrides...)
	if err := f.qa.CreateQuestion(ctx, q, f.Tags()); err != nil {
		return nil, err
	}
	return q, nil
}

func markdownBody() string {
	var sb strings.Builder
	sb.WriteString("## " + gofakeit.HipsterSentence(4) + "\n\n")
	sb.WriteString(gofakeit.Paragraph(2, 3, 12, "\n\n"))
	sb.WriteString("\n\n- " + gofakeit.HackerPhrase())
	sb.WriteString("\n- " + gofakeit.HackerPhrase())
	sb.WriteString("\n\n`" + gofakeit.HackerVerb() + "()`\n")
	return sb.String()
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
