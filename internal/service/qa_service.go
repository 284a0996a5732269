package service

import (
	"context"
	"strconv"

	"zanhu/internal/models"
	"zanhu/internal/observability"
	"zanhu/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// VoteUp is the request value of an upvote. Anything else counts as a downvote.
const VoteUp = "U"

type QAService struct {
	qaRepo   repository.QARepository
	notifier *NotificationService
	renderer Renderer
}

type CreateQuestionInput struct {
	UserID  uint
	Title   string
	Content string
	Status  models.QuestionStatus
	Tags    []string
}

type CreateAnswerInput struct {
	User       *models.User
	QuestionID uint
	Content    string
}

// QuestionList is one page of questions plus the tag cloud.
type QuestionList struct {
	Questions   []models.Question `json:"questions"`
	Total       int64             `json:"total"`
	Page        int               `json:"page"`
	Filter      string            `json:"filter"`
	PopularTags []models.TagCount `json:"popular_tags"`
}

// QuestionDetail is a question with its voters and its answers.
type QuestionDetail struct {
	Question   *models.Question `json:"question"`
	Upvoters   []models.User    `json:"upvoters"`
	Downvoters []models.User    `json:"downvoters"`
	Answers    []models.Answer  `json:"answers"`
}

func NewQAService(
	qaRepo repository.QARepository,
	notifier *NotificationService,
	renderer Renderer,
) *QAService {
	return &QAService{
		qaRepo:   qaRepo,
		notifier: notifier,
		renderer: renderer,
	}
}

func (s *QAService) ListQuestions(ctx context.Context, filter repository.QuestionFilter, page int) (*QuestionList, error) {
	if page < 1 {
		page = 1
	}
	switch filter {
	case repository.QuestionsAll, repository.QuestionsAnswered, repository.QuestionsUnanswered:
	case "":
		filter = repository.QuestionsAll
	default:
		return nil, models.NewValidationError("Invalid question filter")
	}

	result, err := s.qaRepo.ListQuestions(ctx, filter, QuestionPageSize, pageOffset(page, QuestionPageSize))
	if err != nil {
		return nil, err
	}
	tags, err := s.qaRepo.PopularTags(ctx)
	if err != nil {
		return nil, err
	}
	return &QuestionList{
		Questions:   result.Questions,
		Total:       result.Total,
		Page:        page,
		Filter:      string(filter),
		PopularTags: tags,
	}, nil
}

func (s *QAService) CreateQuestion(ctx context.Context, in CreateQuestionInput) (*models.Question, error) {
	const maxTitleLen = 255

	title, content := trimmed(in.Title), trimmed(in.Content)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 255 characters)")
	}
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, models.NewValidationError("Invalid status")
	}

	q := &models.Question{
		UserID:  in.UserID,
		Title:   title,
		Content: content,
		Status:  in.Status,
	}
	if err := s.qaRepo.CreateQuestion(ctx, q, repository.NormalizeTags(in.Tags)); err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestion returns the question, its voters and its answers with rendered bodies.
func (s *QAService) GetQuestion(ctx context.Context, id uint) (*QuestionDetail, error) {
	q, err := s.qaRepo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	q.ContentHTML = s.renderer.Render(ctx, q.Content)

	tally, err := s.qaRepo.Tally(ctx, models.VoteOnQuestion, q.ObjectID())
	if err != nil {
		return nil, err
	}
	answers, err := s.qaRepo.ListAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range answers {
		answers[i].ContentHTML = s.renderer.Render(ctx, answers[i].Content)
	}

	return &QuestionDetail{
		Question:   q,
		Upvoters:   tally.Upvoters,
		Downvoters: tally.Downvoters,
		Answers:    answers,
	}, nil
}

// CreateAnswer answers a question and tells the asker.
func (s *QAService) CreateAnswer(ctx context.Context, in CreateAnswerInput) (*models.Answer, error) {
	content := trimmed(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}

	q, err := s.qaRepo.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		UserID:     in.User.ID,
		QuestionID: q.ID,
		Content:    content,
	}
	if err := s.qaRepo.CreateAnswer(ctx, answer); err != nil {
		return nil, err
	}
	answer.User = in.User
	answer.ContentHTML = s.renderer.Render(ctx, answer.Content)

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, NotifyInput{
			Actor:       in.User,
			RecipientID: q.UserID,
			Verb:        models.VerbAnswer,
			Object:      q,
		}); err != nil {
			return nil, err
		}
	}
	return answer, nil
}

// VoteQuestion casts, flips or withdraws the user's vote and returns the new total.
func (s *QAService) VoteQuestion(ctx context.Context, userID, questionID uint, value string) (int64, error) {
	if _, err := s.qaRepo.GetQuestion(ctx, questionID); err != nil {
		return 0, err
	}
	objectID := strconv.FormatUint(uint64(questionID), 10)
	return s.vote(ctx, userID, models.VoteOnQuestion, objectID, value)
}

// VoteAnswer is VoteQuestion for answers.
func (s *QAService) VoteAnswer(ctx context.Context, userID uint, answerID uuid.UUID, value string) (int64, error) {
	if _, err := s.qaRepo.GetAnswer(ctx, answerID); err != nil {
		return 0, err
	}
	return s.vote(ctx, userID, models.VoteOnAnswer, answerID.String(), value)
}

func (s *QAService) vote(ctx context.Context, userID uint, target models.VoteTarget, objectID, value string) (int64, error) {
	if err := s.qaRepo.Vote(ctx, userID, target, objectID, value == VoteUp); err != nil {
		return 0, err
	}
	return s.qaRepo.TotalVotes(ctx, target, objectID)
}

// AcceptAnswer marks the answer as accepted. Only the asker may accept.
func (s *QAService) AcceptAnswer(ctx context.Context, user *models.User, answerID uuid.UUID) (err error) {
	ctx, finish := observability.StartSpan(ctx, "QAService", "AcceptAnswer",
		attribute.String("answer.id", answerID.String()), attribute.Int64("user.id", int64(user.ID)))
	defer func() { finish(err) }()

	answer, err := s.qaRepo.GetAnswer(ctx, answerID)
	if err != nil {
		return err
	}
	if answer.Question == nil || answer.Question.UserID != user.ID {
		return models.NewForbiddenError("Only the asker can accept an answer")
	}
	if err := s.qaRepo.AcceptAnswer(ctx, answer); err != nil {
		return err
	}

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, NotifyInput{
			Actor:       user,
			RecipientID: answer.UserID,
			Verb:        models.VerbAccept,
			Object:      answer,
		}); err != nil {
			return err
		}
	}
	return nil
}
