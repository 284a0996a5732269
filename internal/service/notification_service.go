package service

import (
	"context"

	"zanhu/internal/models"
	"zanhu/internal/notifications"
	"zanhu/internal/observability"
	"zanhu/internal/repository"
)

// NotificationService records activity notifications and pushes them to connected clients.
type NotificationService struct {
	repo      repository.NotificationRepository
	userRepo  repository.UserRepository
	publisher Publisher
}

// NotifyInput describes one activity. Key defaults to "notification".
type NotifyInput struct {
	Actor       *models.User
	RecipientID uint
	Verb        models.NotificationVerb
	Object      models.ActionObject
	Key         string
	IDValue     string
}

func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	publisher Publisher,
) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, publisher: publisher}
}

// Notify persists the notification and broadcasts it to the notifications group.
// Notifying yourself is a no-op and returns nil, nil.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.Actor == nil || in.RecipientID == 0 || in.Actor.ID == in.RecipientID {
		return nil, nil
	}
	if !in.Verb.Valid() {
		return nil, models.NewValidationError("Invalid notification verb")
	}

	recipient, err := s.userRepo.GetByID(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}

	recipientID := recipient.ID
	n := &models.Notification{
		ActorID:     in.Actor.ID,
		Actor:       in.Actor,
		RecipientID: &recipientID,
		Recipient:   recipient,
		Verb:        in.Verb,
	}
	if in.Object != nil {
		n.ActionObjectType = in.Object.ObjectType()
		n.ActionObjectID = in.Object.ObjectID()
		n.ActionObjectRepr = truncate(in.Object.String(), 255)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Verb)).Inc()

	key := in.Key
	if key == "" {
		key = notifications.KeyNotification
	}
	ev := notifications.Event{
		Key:          key,
		ActorName:    in.Actor.Username,
		ActionObject: recipient.Username,
		IDValue:      in.IDValue,
	}
	if s.publisher != nil {
		publishQuietly(ctx, func() error { return s.publisher.PublishGroup(ctx, ev) }, key)
	}
	return n, nil
}

func (s *NotificationService) Unread(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.Unread(ctx, userID)
}

func (s *NotificationService) Read(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.Read(ctx, userID)
}

// Latest returns the five most recent unread notifications.
func (s *NotificationService) Latest(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.MostRecent(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) MarkAllUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllUnread(ctx, userID)
}

// Mark flips the unread flag of one of the user's notifications.
func (s *NotificationService) Mark(ctx context.Context, userID uint, slug string, unread bool) (*models.Notification, error) {
	n, err := s.repo.GetBySlug(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetUnread(ctx, n, unread); err != nil {
		return nil, err
	}
	return n, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
