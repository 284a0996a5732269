package repository

import (
	"context"
	"errors"
	"strconv"

	"zanhu/internal/cache"
	"zanhu/internal/models"
	"zanhu/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestionFilter selects which questions a list returns.
type QuestionFilter string

const (
	QuestionsAll        QuestionFilter = "all"
	QuestionsAnswered   QuestionFilter = "answered"
	QuestionsUnanswered QuestionFilter = "unanswered"
)

// QuestionPage is one page of a question list.
type QuestionPage struct {
	Questions []models.Question `json:"questions"`
	Total     int64             `json:"total"`
}

// QARepository defines persistence operations for questions, answers and votes.
type QARepository interface {
	ListQuestions(ctx context.Context, filter QuestionFilter, limit, offset int) (*QuestionPage, error)
	PopularTags(ctx context.Context) ([]models.TagCount, error)
	CreateQuestion(ctx context.Context, q *models.Question, tags []string) error
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	ListAnswers(ctx context.Context, questionID uint) ([]models.Answer, error)
	CreateAnswer(ctx context.Context, a *models.Answer) error
	GetAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error)
	// Vote records up (true) or down (false). Casting the same value twice
	// withdraws the vote; a different value replaces it.
	Vote(ctx context.Context, userID uint, target models.VoteTarget, objectID string, up bool) error
	Tally(ctx context.Context, target models.VoteTarget, objectID string) (*models.VoteTally, error)
	TotalVotes(ctx context.Context, target models.VoteTarget, objectID string) (int64, error)
	// AcceptAnswer marks the answer as the accepted one of its question, clearing any
	// previous acceptance, and flags the question as answered.
	AcceptAnswer(ctx context.Context, answer *models.Answer) error
}

type qaRepository struct {
	db *gorm.DB
}

// NewQARepository returns a new QARepository implementation.
func NewQARepository(db *gorm.DB) QARepository {
	return &qaRepository{db: db}
}

var qaLog = observability.NewRepoLogger("qa")

func (r *qaRepository) withQuestionDetails(db *gorm.DB) *gorm.DB {
	return db.Select("questions.*, " +
		"COALESCE((SELECT SUM(CASE WHEN votes.value THEN 1 ELSE -1 END) FROM votes WHERE votes.content_type = 'question' AND votes.object_id = CAST(questions.id AS VARCHAR(255))), 0) AS votes, " +
		"(SELECT COUNT(*) FROM answers WHERE answers.question_id = questions.id) AS answers_count")
}

func (r *qaRepository) withAnswerDetails(db *gorm.DB) *gorm.DB {
	return db.Select("answers.*, " +
		"COALESCE((SELECT SUM(CASE WHEN votes.value THEN 1 ELSE -1 END) FROM votes WHERE votes.content_type = 'answer' AND votes.object_id = CAST(answers.id AS VARCHAR(255))), 0) AS votes")
}

func (r *qaRepository) ListQuestions(ctx context.Context, filter QuestionFilter, limit, offset int) (*QuestionPage, error) {
	limit, offset = clampLimit(limit), clampOffset(offset)
	var page QuestionPage
	key := cache.ListKey(ctx, cache.NamespaceQuestions, string(filter), strconv.Itoa(limit), strconv.Itoa(offset))

	err := cache.Aside(ctx, key, &page, cache.ListTTL, func() error {
		db := readDB(r.db).WithContext(ctx)
		scope := func(q *gorm.DB) *gorm.DB {
			switch filter {
			case QuestionsAnswered:
				return q.Where("questions.has_answer = ?", true)
			case QuestionsUnanswered:
				return q.Where("questions.has_answer = ?", false)
			default:
				return q
			}
		}
		if err := scope(db.Model(&models.Question{})).Count(&page.Total).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := scope(r.withQuestionDetails(db)).
			Preload("User").
			Preload("Tags").
			Order("questions.created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&page.Questions).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// PopularTags counts tags across all questions.
func (r *qaRepository) PopularTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	key := cache.ListKey(ctx, cache.NamespacePopularTags, "questions")
	err := cache.Aside(ctx, key, &tags, cache.ListTTL, func() error {
		var err error
		tags, err = countTags(readDB(r.db).WithContext(ctx), "question_tags", "questions", "question_id", "")
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *qaRepository) CreateQuestion(ctx context.Context, q *models.Question, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := resolveTags(tx, tags)
		if err != nil {
			return err
		}
		q.Tags = resolved
		return tx.Omit("User").Create(q).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A question with this title already exists")
		}
		qaLog.LogError(ctx, err, "create_question")
		return models.NewInternalError(err)
	}
	qaLog.LogCreate(ctx, map[string]interface{}{"question_id": q.ID, "slug": q.Slug})
	cache.BumpNamespace(ctx, cache.NamespaceQuestions)
	cache.BumpNamespace(ctx, cache.NamespacePopularTags)
	return nil
}

func (r *qaRepository) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	err := cache.Aside(ctx, cache.QuestionKey(id), &q, cache.QuestionTTL, func() error {
		if err := r.withQuestionDetails(readDB(r.db).WithContext(ctx)).
			Preload("User").
			Preload("Tags").
			Where("questions.id = ?", id).
			First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Question", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListAnswers returns the accepted answer first, then the newest.
func (r *qaRepository) ListAnswers(ctx context.Context, questionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.withAnswerDetails(readDB(r.db).WithContext(ctx)).
		Preload("User").
		Where("answers.question_id = ?", questionID).
		Order("answers.is_answered DESC").
		Order("answers.created_at DESC").
		Find(&answers).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return answers, nil
}

func (r *qaRepository) CreateAnswer(ctx context.Context, a *models.Answer) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		qaLog.LogError(ctx, err, "create_answer")
		return models.NewInternalError(err)
	}
	cache.InvalidateQuestion(ctx, a.QuestionID)
	qaLog.LogCreate(ctx, map[string]interface{}{"answer_id": a.ID, "question_id": a.QuestionID})
	return nil
}

func (r *qaRepository) GetAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	var a models.Answer
	if err := r.withAnswerDetails(r.db.WithContext(ctx)).
		Preload("User").
		Preload("Question").
		Where("answers.id = ?", id).
		First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Answer", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &a, nil
}

func (r *qaRepository) Vote(ctx context.Context, userID uint, target models.VoteTarget, objectID string, up bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Where("user_id = ? AND content_type = ? AND object_id = ?", userID, target, objectID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.Vote{UserID: userID, ContentType: target, ObjectID: objectID, Value: up}).Error
		case err != nil:
			return err
		case existing.Value == up:
			return tx.Delete(&existing).Error
		default:
			return tx.Model(&existing).Update("value", up).Error
		}
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Vote already recorded")
		}
		qaLog.LogError(ctx, err, "vote")
		return models.NewInternalError(err)
	}
	qaLog.LogUpdate(ctx, map[string]interface{}{"vote_target": string(target), "object_id": objectID, "user_id": userID})
	if target == models.VoteOnQuestion {
		if id, convErr := strconv.ParseUint(objectID, 10, 64); convErr == nil {
			cache.InvalidateQuestion(ctx, uint(id))
		}
	}
	return nil
}

func (r *qaRepository) TotalVotes(ctx context.Context, target models.VoteTarget, objectID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Select("COALESCE(SUM(CASE WHEN value THEN 1 ELSE -1 END), 0)").
		Where("content_type = ? AND object_id = ?", target, objectID).
		Scan(&total).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return total, nil
}

func (r *qaRepository) Tally(ctx context.Context, target models.VoteTarget, objectID string) (*models.VoteTally, error) {
	var votes []models.Vote
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("content_type = ? AND object_id = ?", target, objectID).
		Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	tally := &models.VoteTally{Upvoters: []models.User{}, Downvoters: []models.User{}}
	for _, v := range votes {
		if v.Value {
			tally.Total++
			if v.User != nil {
				tally.Upvoters = append(tally.Upvoters, *v.User)
			}
		} else {
			tally.Total--
			if v.User != nil {
				tally.Downvoters = append(tally.Downvoters, *v.User)
			}
		}
	}
	return tally, nil
}

func (r *qaRepository) AcceptAnswer(ctx context.Context, answer *models.Answer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ?", answer.QuestionID).
			Update("is_answered", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Answer{}).
			Where("id = ?", answer.ID).
			Update("is_answered", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).
			Where("id = ?", answer.QuestionID).
			UpdateColumn("has_answer", true).Error
	})
	if err != nil {
		qaLog.LogError(ctx, err, "accept_answer")
		return models.NewInternalError(err)
	}
	qaLog.LogUpdate(ctx, map[string]interface{}{"answer_id": answer.ID, "question_id": answer.QuestionID, "accepted": true})
	answer.IsAnswered = true
	if answer.Question != nil {
		answer.Question.HasAnswer = true
	}
	cache.InvalidateQuestion(ctx, answer.QuestionID)
	return nil
}
