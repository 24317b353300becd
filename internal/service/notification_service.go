package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/pkg/config"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationService persists lifecycle notifications through a background
// queue so lifecycle transitions never wait on notification writes.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService and its queue. Call
// Start before use and Stop on shutdown.
func NewNotificationService(repo notificationRepository, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatcher workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification for asynchronous persistence. Delivery is
// best effort; a full buffer is logged, not surfaced to the caller.
func (s *NotificationService) Notify(userID string, kind models.NotificationType, message string) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(kind),
		Payload: models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      kind,
			Message:   message,
			CreatedAt: time.Now().UTC(),
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("user_id", userID), zap.String("type", string(kind)), zap.Error(err))
	}
}

// ListForUser returns the user's recent notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// PurgeOlderThan removes notifications past the retention window. Invoked by
// the scheduled cleanup job.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-age))
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.repo.Create(ctx, &notification)
}
