package publisher

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

// NewEvent 由批次构造 batch.ready 事件
func NewEvent(b *storage.Batch) Event {
	sources := make(map[string]int)
	for _, r := range b.Articles {
		sources[r.SourceLabel]++
	}
	return Event{
		ID:           uuid.NewString(),
		Type:         EventBatchReady,
		CreatedAt:    b.CreatedAt,
		ExpiresAt:    b.ExpiresAt(),
		ArticleCount: len(b.Articles),
		Sources:      sources,
		Articles:     b.Articles,
	}
}

// Trim 只保留最新的 n 条文章，避免消息体超过队列上限
func (e Event) Trim(n int) Event {
	if n > 0 && len(e.Articles) > n {
		e.Articles = e.Articles[:n]
	}
	return e
}

// Notifier 把新批次广播给所有 publisher，单个失败只记录日志
type Notifier struct {
	pubs []Publisher
	log  logger.Logger
}

func NewNotifier(pubs []Publisher, log logger.Logger) *Notifier {
	return &Notifier{pubs: pubs, log: logger.Ensure(log)}
}

func (n *Notifier) BatchReady(ctx context.Context, b *storage.Batch) {
	if n == nil || len(n.pubs) == 0 || b == nil {
		return
	}

	evt := NewEvent(b)
	var wg sync.WaitGroup
	for _, p := range n.pubs {
		wg.Add(1)
		go func(p Publisher) {
			defer wg.Done()
			if err := p.Publish(ctx, evt); err != nil {
				n.log.ErrorObj("publish batch event failed", "publisher_error", map[string]any{
					"publisher": p.ID(),
					"type":      p.Type(),
					"error":     err.Error(),
				})
				return
			}
			n.log.InfoObj("batch event published", "publisher_delivery", map[string]any{
				"publisher": p.ID(),
				"event_id":  evt.ID,
				"articles":  evt.ArticleCount,
			})
		}(p)
	}
	wg.Wait()
}

// NotifierFromFile 读取配置并构造所有已启用的 publisher；path 为空时返回 nil
func NotifierFromFile(ctx context.Context, path string, log logger.Logger) (*Notifier, error) {
	if path == "" {
		return nil, nil
	}
	cfgs, err := LoadConfigs(path)
	if err != nil {
		return nil, err
	}
	pubs, err := BuildAll(ctx, DefaultRegistry(), cfgs, log)
	if err != nil {
		return nil, err
	}
	return NewNotifier(pubs, log), nil
}
