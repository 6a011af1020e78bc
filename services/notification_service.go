package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/types/notification"
)

// PushProvider delivers a push message to a set of device tokens. FCM in
// production, absent in tests.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db   *pgxpool.Pool
	push PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.push = p
}

// Notify persists a notification row and dispatches a push to the user's
// registered devices. Fire-and-forget: this is a secondary effect of
// whatever triggered it, so every failure is logged and swallowed.
func (s *NotificationService) Notify(userID uuid.UUID, event notification.Event, title, body string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("Notify: failed to encode payload for %s: %v", event, err)
		return
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notifications (user_id, event, title, body, data, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, userID, event, title, body, dataJSON)
	if err != nil {
		log.Printf("Notify: failed to persist %s for user %s: %v", event, userID, err)
		return
	}

	if s.push == nil {
		return
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Notify: failed to load device tokens for %s: %v", userID, err)
		return
	}
	if err := s.push.SendPush(ctx, tokens, title, body, data); err != nil {
		log.Printf("Notify: push delivery failed for %s: %v", userID, err)
	}
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RegisterDevice upserts a push token for the authenticated user.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID, token, platform string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user not found")
		}
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform, registered_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, token) DO UPDATE SET platform = $3, registered_at = NOW()
	`, userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}
