package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

var sampleEvent = marketplace.Event{
	Type:       marketplace.EventRequestAccepted,
	EntityID:   "req-1",
	BuyerID:    "buyer-1",
	SellerID:   "seller-1",
	OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestTaskType(t *testing.T) {
	assert.Equal(t, TaskRequestAccepted, TaskType(marketplace.EventRequestAccepted))
	assert.Equal(t, TaskReviewSubmitted, TaskType(marketplace.EventReviewSubmitted))
	assert.Equal(t, "event:service_paused", TaskType("service.paused"))
}

func TestRecipient(t *testing.T) {
	ev := sampleEvent
	assert.Equal(t, "buyer-1", Recipient(ev))

	ev.Type = marketplace.EventRequestSubmitted
	assert.Equal(t, "seller-1", Recipient(ev))

	ev.Type = marketplace.EventOrderCompleted
	assert.Equal(t, "seller-1", Recipient(ev))
}

func TestAsynqNotifier_Publish(t *testing.T) {
	fake := &fakeEnqueuer{}
	n := &AsynqNotifier{client: fake, queue: "events"}

	require.NoError(t, n.Publish(context.Background(), sampleEvent))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskRequestAccepted, fake.tasks[0].Type())

	var got marketplace.Event
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &got))
	assert.Equal(t, sampleEvent, got)

	var queue string
	for _, o := range fake.opts[0] {
		if o.Type() == asynq.QueueOpt {
			queue = o.Value().(string)
		}
	}
	assert.Equal(t, "events", queue)
}

func TestAsynqNotifier_PublishError(t *testing.T) {
	n := &AsynqNotifier{client: &fakeEnqueuer{err: errors.New("redis down")}, queue: "events"}
	err := n.Publish(context.Background(), sampleEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestKafkaNotifier_Publish(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{w: w}

	require.NoError(t, n.Publish(context.Background(), sampleEvent))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "req-1", string(w.msgs[0].Key))
	assert.Equal(t, "request.accepted", string(w.msgs[0].Headers[0].Value))
	assert.Equal(t, sampleEvent.OccurredAt, w.msgs[0].Time)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestProcessor_HandleEvent(t *testing.T) {
	p := &Processor{log: zerolog.Nop()}

	b, _ := json.Marshal(sampleEvent)
	assert.NoError(t, p.handleEvent(context.Background(), asynq.NewTask(TaskRequestAccepted, b)))

	err := p.handleEvent(context.Background(), asynq.NewTask(TaskRequestAccepted, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.handleEvent(context.Background(), asynq.NewTask(TaskRequestAccepted, []byte(`{"type":"request.accepted"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNew_Drivers(t *testing.T) {
	cfg := &config.Config{Notify: config.NotifyConfig{Driver: "log"}}
	n, closeFn, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)
	assert.NoError(t, closeFn())
	assert.NoError(t, n.Publish(context.Background(), sampleEvent))

	cfg.Notify = config.NotifyConfig{Driver: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}
	n, closeFn, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &KafkaNotifier{}, n)
	assert.NoError(t, closeFn())

	cfg.Notify.Driver = "carrier-pigeon"
	_, _, err = New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
