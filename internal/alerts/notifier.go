package alerts

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// New builds the notifier selected by cfg.Notify.Driver. The returned close
// function releases broker connections.
func New(cfg *config.Config, logger zerolog.Logger) (marketplace.Notifier, func() error, error) {
	switch cfg.Notify.Driver {
	case "log", "":
		return NewLogNotifier(logger), func() error { return nil }, nil
	case "asynq":
		client := asynq.NewClient(RedisOpt(cfg.Redis))
		return NewAsynqNotifier(client, cfg.Notify.AsynqQueue), client.Close, nil
	case "kafka":
		n := NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		return n, n.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}
