package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"zanhu/internal/database"
	"zanhu/internal/featureflags"
	"zanhu/internal/markdown"
	"zanhu/internal/models"
	"zanhu/internal/repository"
	"zanhu/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	// NumItems is split between news, articles and questions by Mix.
	NumItems    int
	Mix         Distribution
	ShouldClean bool
	SkipBcrypt  bool
	MaxDays     int
	// RandomSeed makes a run reproducible. Zero seeds from the clock.
	RandomSeed int64
}

// Distribution is the percentage share of each content kind.
type Distribution struct {
	News      int
	Articles  int
	Questions int
}

var defaultDistribution = Distribution{News: 50, Articles: 30, Questions: 20}

// Distributions are the named content mixes accepted by the seed command.
var Distributions = map[string]Distribution{
	"default":   defaultDistribution,
	"social":    {News: 80, Articles: 10, Questions: 10},
	"knowledge": {News: 20, Articles: 40, Questions: 40},
	"qa":        {News: 10, Articles: 0, Questions: 90},
}

// Presets are ready made volumes for the seed command.
var Presets = map[string]Options{
	"small":  {NumUsers: 5, NumItems: 20, MaxDays: 14},
	"demo":   {NumUsers: 25, NumItems: 150, MaxDays: 60},
	"large":  {NumUsers: 200, NumItems: 2000, MaxDays: 365, SkipBcrypt: true},
	"stress": {NumUsers: 1000, NumItems: 20000, MaxDays: 365, SkipBcrypt: true},
}

// computeCounts splits total by the distribution. Rounding leftovers go to news.
func computeCounts(total int, d Distribution) (news, articles, questions int) {
	sum := d.News + d.Articles + d.Questions
	if sum <= 0 || total <= 0 {
		return total, 0, 0
	}
	articles = total * d.Articles / sum
	questions = total * d.Questions / sum
	news = total - articles - questions
	return news, articles, questions
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	News          int
	Replies       int
	Likes         int
	Articles      int
	Comments      int
	Questions     int
	Answers       int
	Votes         int
	Messages      int
	Notifications int64
}

// Seeder fills a database with demo content. Interactions go through the
// services so notifications are produced the same way the API produces them.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory

	news     *service.NewsService
	articles *service.ArticleService
	qa       *service.QAService
	messages *service.MessageService
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.Mix == (Distribution{}) {
		opts.Mix = defaultDistribution
	}

	userRepo := repository.NewUserRepository(db)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), userRepo, nil)
	renderer := markdown.NewRenderer(false)

	return &Seeder{
		db:       db,
		opts:     opts,
		factory:  NewFactory(db, opts),
		news:     service.NewNewsService(repository.NewNewsRepository(db), notifier, nil, featureflags.NewManager("")),
		articles: service.NewArticleService(repository.NewArticleRepository(db), notifier, renderer),
		qa:       service.NewQAService(repository.NewQARepository(db), notifier, renderer),
		messages: service.NewMessageService(repository.NewMessageRepository(db), userRepo, nil),
	}
}

// ApplyPreset overrides the volume options with a named preset.
func (s *Seeder) ApplyPreset(name string) error {
	preset, ok := Presets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	s.opts.NumUsers = preset.NumUsers
	s.opts.NumItems = preset.NumItems
	s.opts.MaxDays = preset.MaxDays
	s.opts.SkipBcrypt = s.opts.SkipBcrypt || preset.SkipBcrypt
	s.factory.opts = s.opts
	return nil
}

// Run seeds users, content and the interactions between them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.NumUsers < 2 {
		return nil, errors.New("at least two users are needed to seed interactions")
	}

	log.Printf("🌱 Seeding %d users and %d content items...", s.opts.NumUsers, s.opts.NumItems)

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			log.Printf("⚠️  Warning: could not clear existing data: %v", err)
		}
	}

	sum := &Summary{}
	users, err := s.seedUsers(ctx, sum)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", sum.Users)

	numNews, numArticles, numQuestions := computeCounts(s.opts.NumItems, s.opts.Mix)

	if err := s.seedNews(ctx, users, numNews, sum); err != nil {
		return nil, fmt.Errorf("failed to create news: %w", err)
	}
	log.Printf("✓ %d news, %d replies, %d likes", sum.News, sum.Replies, sum.Likes)

	if err := s.seedArticles(ctx, users, numArticles, sum); err != nil {
		return nil, fmt.Errorf("failed to create articles: %w", err)
	}
	log.Printf("✓ %d articles, %d comments", sum.Articles, sum.Comments)

	if err := s.seedQA(ctx, users, numQuestions, sum); err != nil {
		return nil, fmt.Errorf("failed to create questions: %w", err)
	}
	log.Printf("✓ %d questions, %d answers, %d votes", sum.Questions, sum.Answers, sum.Votes)

	if err := s.seedMessages(ctx, users, sum); err != nil {
		return nil, fmt.Errorf("failed to create messages: %w", err)
	}
	log.Printf("✓ %d messages", sum.Messages)

	if err := s.db.WithContext(ctx).Model(&models.Notification{}).Count(&sum.Notifications).Error; err != nil {
		return nil, err
	}

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context, sum *Summary) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)

	// A stable account to log in with.
	demo, err := s.factory.CreateUser(ctx, func(u *models.User) {
		u.Username = "demo"
		u.Email = "demo@example.com"
		u.Nickname = "Demo User"
	})
	if err != nil {
		return nil, err
	}
	users = append(users, demo)

	for len(users) < s.opts.NumUsers {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			if isConflict(err) {
				continue
			}
			return nil, err
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	return users, nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.factory.rnd.Intn(len(users))]
}

// others returns up to n distinct users other than skip.
func (s *Seeder) others(users []*models.User, skip *models.User, n int) []*models.User {
	out := make([]*models.User, 0, n)
	for _, i := range s.factory.rnd.Perm(len(users)) {
		if len(out) == n {
			break
		}
		if users[i].ID != skip.ID {
			out = append(out, users[i])
		}
	}
	return out
}

func (s *Seeder) seedNews(ctx context.Context, users []*models.User, count int, sum *Summary) error {
	for i := 0; i < count; i++ {
		author := s.pick(users)
		news, err := s.factory.CreateNews(ctx, author)
		if err != nil {
			return err
		}
		sum.News++

		for _, liker := range s.others(users, author, s.factory.rnd.Intn(6)) {
			if _, err := s.news.ToggleLike(ctx, liker, news.ID); err != nil {
				return err
			}
			sum.Likes++
		}
		for _, replier := range s.others(users, author, s.factory.rnd.Intn(4)) {
			if _, err := s.news.Reply(ctx, service.ReplyNewsInput{
				User:    replier,
				NewsID:  news.ID,
				Content: gofakeit.Sentence(8),
			}); err != nil {
				return err
			}
			sum.Replies++
		}
	}
	return nil
}

func (s *Seeder) seedArticles(ctx context.Context, users []*models.User, count int, sum *Summary) error {
	for i := 0; i < count; i++ {
		author := s.pick(users)
		article, err := s.factory.CreateArticle(ctx, author)
		if err != nil {
			if isConflict(err) {
				continue
			}
			return err
		}
		sum.Articles++

		if article.Status != models.ArticlePublished {
			continue
		}
		for _, commenter := range s.others(users, author, s.factory.rnd.Intn(4)) {
			if _, err := s.articles.CommentArticle(ctx, service.CommentArticleInput{
				User:    commenter,
				Slug:    article.Slug,
				Content: gofakeit.Sentence(10),
			}); err != nil {
				return err
			}
			sum.Comments++
		}
	}
	return nil
}

func (s *Seeder) seedQA(ctx context.Context, users []*models.User, count int, sum *Summary) error {
	for i := 0; i < count; i++ {
		asker := s.pick(users)
		q, err := s.factory.CreateQuestion(ctx, asker)
		if err != nil {
			if isConflict(err) {
				continue
			}
			return err
		}
		sum.Questions++

		for _, voter := range s.others(users, asker, s.factory.rnd.Intn(5)) {
			if _, err := s.qa.VoteQuestion(ctx, voter.ID, q.ID, s.voteValue()); err != nil {
				return err
			}
			sum.Votes++
		}

		var answers []*models.Answer
		for _, helper := range s.others(users, asker, s.factory.rnd.Intn(4)) {
			a, err := s.qa.CreateAnswer(ctx, service.CreateAnswerInput{
				User:       helper,
				QuestionID: q.ID,
				Content:    gofakeit.Paragraph(1, 3, 10, "\n\n"),
			})
			if err != nil {
				return err
			}
			answers = append(answers, a)
			sum.Answers++

			for _, voter := range s.others(users, helper, s.factory.rnd.Intn(3)) {
				if _, err := s.qa.VoteAnswer(ctx, voter.ID, a.ID, s.voteValue()); err != nil {
					return err
				}
				sum.Votes++
			}
		}

		if len(answers) > 0 && s.factory.rnd.Intn(2) == 0 {
			accepted := answers[s.factory.rnd.Intn(len(answers))]
			if err := s.qa.AcceptAnswer(ctx, asker, accepted.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// voteValue is an upvote three times out of four.
func (s *Seeder) voteValue() string {
	if s.factory.rnd.Intn(4) == 0 {
		return "D"
	}
	return service.VoteUp
}

func (s *Seeder) seedMessages(ctx context.Context, users []*models.User, sum *Summary) error {
	for _, sender := range users {
		for _, to := range s.others(users, sender, s.factory.rnd.Intn(3)) {
			for j := s.factory.rnd.Intn(4) + 1; j > 0; j-- {
				if _, err := s.messages.SendMessage(ctx, service.SendMessageInput{
					Sender: sender,
					To:     to.Username,
					Body:   gofakeit.Sentence(8),
				}); err != nil {
					return err
				}
				sum.Messages++
			}
		}
	}
	return nil
}

// ClearAll removes every row of the application tables.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")

	tables, err := tableNames(s.db)
	if err != nil {
		return err
	}
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))).Error
	}

	// Children first so foreign keys hold.
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.Exec("DELETE FROM " + tables[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// tableNames lists the schema tables in migration order, join tables included.
func tableNames(db *gorm.DB) ([]string, error) {
	var tables []string
	for _, model := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		tables = append(tables, stmt.Schema.Table)
		for _, rel := range stmt.Schema.Relationships.Many2Many {
			tables = append(tables, rel.JoinTable.Table)
		}
	}
	return tables, nil
}

func isConflict(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeConflict
}
