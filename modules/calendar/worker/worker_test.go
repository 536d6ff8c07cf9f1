package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (r *recordingInvalidator) InvalidateParticipant(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.ids = append(r.ids, id)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestHandleCalendarChanged(t *testing.T) {
	inv := &recordingInvalidator{}
	handler := HandleCalendarChanged(inv)

	task, err := NewCalendarChangedTask(CalendarChangedPayload{ParticipantID: "alice", Source: "google"})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []string{"alice"}, inv.ids)

	err = handler(context.Background(), asynq.NewTask(TypeCalendarChanged, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = handler(context.Background(), asynq.NewTask(TypeCalendarChanged, []byte(`{"source":"google"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	inv.fail = errors.New("redis down")
	err = handler(context.Background(), task)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestServeMuxRoutesCalendarChanged(t *testing.T) {
	inv := &recordingInvalidator{}
	mux := NewServeMux(inv)

	task, err := NewCalendarChangedTask(CalendarChangedPayload{ParticipantID: "bob"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"bob"}, inv.ids)
}

func TestNotifiers(t *testing.T) {
	enq := &fakeEnqueuer{}
	require.NoError(t, NewQueueNotifier(enq).NotifyChanged(context.Background(), CalendarChangedPayload{ParticipantID: "alice"}))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeCalendarChanged, enq.tasks[0].Type())
	assert.JSONEq(t, `{"participant_id":"alice"}`, string(enq.tasks[0].Payload()))

	inv := &recordingInvalidator{}
	require.NoError(t, NewInlineNotifier(inv).NotifyChanged(context.Background(), CalendarChangedPayload{ParticipantID: "carol"}))
	assert.Equal(t, []string{"carol"}, inv.ids)
}
