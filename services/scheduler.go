package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/types/notification"
)

// StartScheduler runs the background jobs: sweeping expired challenges out
// of the joinable catalog and nudging users whose streak is about to break.
// The returned scheduler should be shut down on exit.
func StartScheduler(db *pgxpool.Pool, catalog *CatalogService, notifier *NotificationService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			n, err := catalog.DeactivateExpired(context.Background())
			if err != nil {
				log.Printf("Scheduler: expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("Scheduler: deactivated %d expired challenges", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// 18:00 UTC: streak reminders for users who completed something
	// yesterday but nothing yet today.
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(18, 0, 0))),
		gocron.NewTask(func() {
			sendStreakReminders(db, notifier)
		}),
	)
	if err != nil {
		return nil, err
	}

	return sched, nil
}

func sendStreakReminders(db *pgxpool.Pool, notifier *NotificationService) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rows, err := db.Query(ctx, `
		SELECT DISTINCT user_id
		FROM user_challenges
		WHERE status = 'COMPLETED'
			AND (last_activity_at AT TIME ZONE 'UTC')::date = (NOW() AT TIME ZONE 'UTC')::date - 1
			AND user_id NOT IN (
				SELECT user_id FROM user_challenges
				WHERE status = 'COMPLETED'
					AND (last_activity_at AT TIME ZONE 'UTC')::date = (NOW() AT TIME ZONE 'UTC')::date
			)
	`)
	if err != nil {
		log.Printf("Scheduler: failed to query streak candidates: %v", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			continue
		}
		notifier.Notify(userID, notification.EventStreakReminder,
			"Your streak is on the line",
			"Complete any challenge today to keep your streak alive.",
			nil,
		)
		count++
	}
	if count > 0 {
		log.Printf("Scheduler: sent %d streak reminders", count)
	}
}
