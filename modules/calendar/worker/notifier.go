package worker

import (
	"context"

	"smartschedule/core/logger"

	"github.com/hibiken/asynq"
)

// Notifier propagates an out-of-band calendar change.
type Notifier interface {
	NotifyChanged(ctx context.Context, payload CalendarChangedPayload) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands changes to the calendar:changed queue.
type QueueNotifier struct {
	enqueuer Enqueuer
}

func NewQueueNotifier(enqueuer Enqueuer) *QueueNotifier {
	return &QueueNotifier{enqueuer: enqueuer}
}

func (n *QueueNotifier) NotifyChanged(ctx context.Context, payload CalendarChangedPayload) error {
	task, err := NewCalendarChangedTask(payload)
	if err != nil {
		return err
	}
	info, err := n.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("QueueNotifier:NotifyChanged:EnqueueError", "participant_id", payload.ParticipantID, "error", err)
		return err
	}
	logger.Debug("QueueNotifier:NotifyChanged:Enqueued", "participant_id", payload.ParticipantID, "task_id", info.ID)
	return nil
}

// InlineNotifier invalidates synchronously, for deployments without a queue.
type InlineNotifier struct {
	inv Invalidator
}

func NewInlineNotifier(inv Invalidator) *InlineNotifier {
	return &InlineNotifier{inv: inv}
}

func (n *InlineNotifier) NotifyChanged(ctx context.Context, payload CalendarChangedPayload) error {
	return n.inv.InvalidateParticipant(ctx, payload.ParticipantID)
}
