package publisher

import (
	"context"
	"fmt"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

// queueSender 各云厂商队列的发送实现
type queueSender interface {
	Send(ctx context.Context, evt Event) error
}

type queuePublisher struct {
	id          string
	provider    string
	maxArticles int
	sender      queueSender
}

func newQueuePublisher(ctx context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case QueueProviderAWSSQS:
		sender, err = newAWSSQSSender(ctx, cfg.Queue.SQS, log)
	case QueueProviderAWSSNS:
		sender, err = newAWSSNSSender(ctx, cfg.Queue.SNS, log)
	case QueueProviderGCP:
		sender, err = newGCPPubSubSender(ctx, cfg.Queue.GCP, log)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &queuePublisher{
		id:          cfg.ID,
		provider:    cfg.Queue.Provider,
		maxArticles: cfg.MaxArticles,
		sender:      sender,
	}, nil
}

func (p *queuePublisher) ID() string   { return p.id }
func (p *queuePublisher) Type() string { return TypeQueue }

func (p *queuePublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.sender.Send(ctx, evt.Trim(p.maxArticles)); err != nil {
		return fmt.Errorf("queue provider %s send failed: %w", p.provider, err)
	}
	return nil
}
