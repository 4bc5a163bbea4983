package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// Processor consumes event tasks enqueued by AsynqNotifier
type Processor struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    zerolog.Logger
}

// NewProcessor builds an asynq server listening on queue
func NewProcessor(opts asynq.RedisClientOpt, queue string, logger zerolog.Logger) *Processor {
	p := &Processor{
		mux: asynq.NewServeMux(),
		log: logger.With().Str("component", "alerts_worker").Logger(),
	}
	for _, task := range taskTypes {
		p.mux.HandleFunc(task, p.handleEvent)
	}
	p.server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{queue: 10},
	})
	return p
}

// Start runs the worker in the background
func (p *Processor) Start() error {
	if err := p.server.Start(p.mux); err != nil {
		return fmt.Errorf("start alerts worker: %w", err)
	}
	p.log.Info().Msg("alerts worker started")
	return nil
}

func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func (p *Processor) handleEvent(_ context.Context, t *asynq.Task) error {
	var ev marketplace.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		p.log.Error().Err(err).Str("task", t.Type()).Msg("malformed event payload")
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if ev.EntityID == "" {
		return fmt.Errorf("%s: missing entity id: %w", t.Type(), asynq.SkipRetry)
	}
	logEvent(p.log, ev)
	return nil
}
