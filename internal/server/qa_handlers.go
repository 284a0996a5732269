package server

import (
	"zanhu/internal/models"
	"zanhu/internal/repository"
	"zanhu/internal/service"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	Value string `json:"value"`
}

// GetQuestions handles GET /api/questions
// @Summary All questions, newest first, with the tag cloud
// @Tags qa
// @Param page query int false "Page number"
// @Success 200 {object} service.QuestionList
// @Router /questions [get]
func (s *Server) GetQuestions(c *fiber.Ctx) error {
	return s.listQuestions(c, repository.QuestionsAll)
}

// GetAnsweredQuestions handles GET /api/questions/answered
func (s *Server) GetAnsweredQuestions(c *fiber.Ctx) error {
	return s.listQuestions(c, repository.QuestionsAnswered)
}

// GetUnansweredQuestions handles GET /api/questions/unanswered
func (s *Server) GetUnansweredQuestions(c *fiber.Ctx) error {
	return s.listQuestions(c, repository.QuestionsUnanswered)
}

func (s *Server) listQuestions(c *fiber.Ctx, filter repository.QuestionFilter) error {
	list, err := s.qaService.ListQuestions(c.UserContext(), filter, parsePage(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(list)
}

// CreateQuestion handles POST /api/questions
// @Summary Ask a question
// @Tags qa
// @Security BearerAuth
// @Accept json
// @Param request body object{title=string,content=string,status=string,tags=string} true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse
// @Router /questions [post]
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		Title   string                `json:"title"`
		Content string                `json:"content"`
		Status  models.QuestionStatus `json:"status"`
		Tags    tagList               `json:"tags"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	q, err := s.qaService.CreateQuestion(c.UserContext(), service.CreateQuestionInput{
		UserID:  currentUserID(c),
		Title:   req.Title,
		Content: req.Content,
		Status:  req.Status,
		Tags:    req.Tags,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// GetQuestion handles GET /api/questions/:id
// @Summary Question detail with answers and voters
// @Tags qa
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 200 {object} service.QuestionDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [get]
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.qaService.GetQuestion(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(detail)
}

// CreateAnswer handles POST /api/questions/:id/answers
// @Summary Answer a question
// @Tags qa
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{content=string} true "Answer"
// @Success 201 {object} models.Answer
// @Router /questions/{id}/answers [post]
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	answer, err := s.qaService.CreateAnswer(c.UserContext(), service.CreateAnswerInput{
		User:       user,
		QuestionID: id,
		Content:    req.Content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(answer)
}

// VoteQuestion handles POST /api/questions/:id/vote
// @Summary Vote on a question; repeating the same vote withdraws it
// @Tags qa
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{value=string} true "U for up, D for down"
// @Success 200 {object} object{votes=int}
// @Router /questions/{id}/vote [post]
func (s *Server) VoteQuestion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	votes, err := s.qaService.VoteQuestion(c.UserContext(), currentUserID(c), id, req.Value)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"votes": votes})
}

// VoteAnswer handles POST /api/answers/:id/vote
func (s *Server) VoteAnswer(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	votes, err := s.qaService.VoteAnswer(c.UserContext(), currentUserID(c), id, req.Value)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"votes": votes})
}

// AcceptAnswer handles POST /api/answers/:id/accept
// @Summary Accept an answer (asker only)
// @Tags qa
// @Security BearerAuth
// @Param id path string true "Answer UUID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /answers/{id}/accept [post]
func (s *Server) AcceptAnswer(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	if err := s.qaService.AcceptAnswer(c.UserContext(), user, id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"status": "true"})
}
