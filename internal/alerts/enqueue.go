package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier turns marketplace events into asynq tasks
type AsynqNotifier struct {
	client enqueuer
	queue  string
}

var _ marketplace.Notifier = (*AsynqNotifier)(nil)

func NewAsynqNotifier(client *asynq.Client, queue string) *AsynqNotifier {
	return &AsynqNotifier{client: client, queue: queue}
}

// Publish enqueues ev on the configured queue
func (n *AsynqNotifier) Publish(ctx context.Context, ev marketplace.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskType(ev.Type), b)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(n.queue), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Type, err)
	}
	return nil
}
