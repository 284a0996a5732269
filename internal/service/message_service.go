package service

import (
	"context"

	"zanhu/internal/models"
	"zanhu/internal/notifications"
	"zanhu/internal/observability"
	"zanhu/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxMessageLen     = 5000
	messengerUserList = 100
)

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	publisher   Publisher
}

type SendMessageInput struct {
	Sender *models.User
	To     string
	Body   string
}

// Conversation is the exchange between the requesting user and With, oldest first.
type Conversation struct {
	With     *models.User     `json:"with"`
	Messages []models.Message `json:"conversation"`
}

// Inbox is the messenger landing view.
type Inbox struct {
	Users          []models.User    `json:"users"`
	ActiveUsername string           `json:"active_username"`
	Conversation   []models.Message `json:"conversation"`
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	publisher Publisher,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

// Inbox lists the other users and opens the most recent conversation.
func (s *MessageService) Inbox(ctx context.Context, userID uint) (*Inbox, error) {
	users, err := s.userRepo.List(ctx, userID, messengerUserList, 0)
	if err != nil {
		return nil, err
	}
	activeID, err := s.messageRepo.GetMostRecentConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.userRepo.GetByID(ctx, activeID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.GetConversation(ctx, userID, activeID)
	if err != nil {
		return nil, err
	}
	if activeID != userID {
		if err := s.messageRepo.MarkConversationRead(ctx, userID, activeID); err != nil {
			return nil, err
		}
	}
	return &Inbox{
		Users:          users,
		ActiveUsername: active.Username,
		Conversation:   messages,
	}, nil
}

// Conversation returns the exchange with username and marks what they sent as read.
func (s *MessageService) Conversation(ctx context.Context, userID uint, username string) (*Conversation, error) {
	other, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	messages, err := s.messageRepo.GetConversation(ctx, userID, other.ID)
	if err != nil {
		return nil, err
	}
	if other.ID != userID {
		if err := s.messageRepo.MarkConversationRead(ctx, userID, other.ID); err != nil {
			return nil, err
		}
	}
	return &Conversation{With: other, Messages: messages}, nil
}

// SendMessage stores a private message and pushes it to the recipient.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (_ *models.Message, err error) {
	ctx, finish := observability.StartSpan(ctx, "MessageService", "SendMessage",
		attribute.Int64("sender.id", int64(in.Sender.ID)))
	defer func() { finish(err) }()

	body := trimmed(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Message is required")
	}
	if len(body) > maxMessageLen {
		return nil, models.NewValidationError("Message too long (max 5000 characters)")
	}

	recipient, err := s.userRepo.GetByUsername(ctx, trimmed(in.To))
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, models.NewNotFoundError("User", in.To)
	}
	if recipient.ID == in.Sender.ID {
		return nil, models.NewValidationError("You cannot message yourself")
	}

	senderID, recipientID := in.Sender.ID, recipient.ID
	msg := &models.Message{
		SenderID:    &senderID,
		RecipientID: &recipientID,
		Body:        body,
		Unread:      true,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = in.Sender
	msg.Recipient = recipient

	if s.publisher != nil {
		ev := notifications.Event{
			Key:          notifications.KeyMessage,
			ActorName:    in.Sender.Username,
			ActionObject: recipient.Username,
			IDValue:      msg.ID.String(),
			Payload:      msg,
		}
		publishQuietly(ctx, func() error { return s.publisher.PublishUser(ctx, recipientID, ev) }, ev.Key)
	}
	return msg, nil
}

// MarkRead marks one received message as read. Messages addressed to
// someone else are reported as not found.
func (s *MessageService) MarkRead(ctx context.Context, userID uint, id uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.RecipientID == nil || *msg.RecipientID != userID {
		return models.NewNotFoundError("Message", id)
	}
	return s.messageRepo.MarkRead(ctx, id)
}

func (s *MessageService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.messageRepo.CountUnread(ctx, userID)
}
