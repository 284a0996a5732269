package server

import (
	"context"
	"log/slog"
	"time"

	"zanhu/internal/middleware"
	"zanhu/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 || s.hub == nil {
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		if frame, err := s.unreadCountsFrame(context.Background(), uid); err == nil {
			client.TrySend([]byte(frame))
		}

		client.Serve()
	})
}

// unreadCountsFrame is the first frame a fresh socket receives so the client
// can render its badges without a separate request.
func (s *Server) unreadCountsFrame(ctx context.Context, userID uint) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	notifs, err := s.notificationService.CountUnread(ctx, userID)
	if err != nil {
		return "", err
	}
	messages, err := s.messageService.CountUnread(ctx, userID)
	if err != nil {
		return "", err
	}
	return notifications.Event{
		Key: notifications.KeyUnreadCounts,
		Payload: fiber.Map{
			"notifications": notifs,
			"messages":      messages,
		},
	}.Encode()
}

// publishPresence announces a user going online or offline to the group.
func (s *Server) publishPresence(online bool) func(userID uint) {
	return func(userID uint) {
		if s.notifier == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			middleware.Logger.Warn("presence lookup failed",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			return
		}
		ev := notifications.Event{
			Key:       notifications.KeyPresence,
			ActorName: user.Username,
			Payload:   fiber.Map{"online": online},
		}
		if err := s.notifier.PublishGroup(ctx, ev); err != nil {
			middleware.Logger.Warn("presence publish failed",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
	}
}
