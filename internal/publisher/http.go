package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

// httpPublisher 把事件以 JSON 形式投递到 webhook
type httpPublisher struct {
	id          string
	cfg         HTTPConfig
	maxArticles int
	client      *resty.Client
	log         logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.HTTP.Headers)

	return &httpPublisher{
		id:          cfg.ID,
		cfg:         *cfg.HTTP,
		maxArticles: cfg.MaxArticles,
		client:      client,
		log:         logger.Ensure(log),
	}, nil
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(evt.Trim(p.maxArticles)).
		Execute(p.cfg.Method, p.cfg.URL)
	if err != nil {
		return fmt.Errorf("http publisher %s request: %w", p.id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("http publisher %s: unexpected status %d", p.id, resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher": p.id,
		"status":    resp.StatusCode(),
	})
	return nil
}
