package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smartschedule/core/logger"

	"github.com/hibiken/asynq"
)

const TypeCalendarChanged = "calendar:changed"

type CalendarChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	Source        string `json:"source,omitempty"`
}

// Invalidator drops cached availability for a participant.
type Invalidator interface {
	InvalidateParticipant(ctx context.Context, participantID string) error
}

func NewCalendarChangedTask(payload CalendarChangedPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCalendarChanged, b, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// HandleCalendarChanged invalidates the participant named in the task. Malformed
// payloads are not retried.
func HandleCalendarChanged(inv Invalidator) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p CalendarChangedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("CalendarChangedWorker:InvalidPayload", "error", err)
			return fmt.Errorf("decode %s payload: %v: %w", TypeCalendarChanged, err, asynq.SkipRetry)
		}
		if strings.TrimSpace(p.ParticipantID) == "" {
			logger.Error("CalendarChangedWorker:MissingParticipant")
			return fmt.Errorf("%s payload without participant_id: %w", TypeCalendarChanged, asynq.SkipRetry)
		}

		if err := inv.InvalidateParticipant(ctx, p.ParticipantID); err != nil {
			logger.Warn("CalendarChangedWorker:InvalidateError", "participant_id", p.ParticipantID, "error", err)
			return err
		}
		logger.Info("CalendarChangedWorker:Invalidated", "participant_id", p.ParticipantID, "source", p.Source)
		return nil
	}
}

func NewServeMux(inv Invalidator) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCalendarChanged, HandleCalendarChanged(inv))
	return mux
}

func NewServer(redisOpt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      asynqLogger{},
	})
}

// asynqLogger routes asynq's own logging through the application logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug("Asynq", "msg", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { logger.Info("Asynq", "msg", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { logger.Warn("Asynq", "msg", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { logger.Error("Asynq", "msg", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...any) { logger.Error("Asynq:Fatal", "msg", fmt.Sprint(args...)) }
