package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/naxeeb/news-aggregator-live/internal/collector"
	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/processor"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

const (
	DefaultTTL          = 300 * time.Second
	DefaultBuildTimeout = 60 * time.Second

	buildKey = "batch"
)

var ErrAggregate = errors.New("failed to aggregate")

// Notifier 新批次生成后的回调，由 publisher 实现
type Notifier interface {
	BatchReady(ctx context.Context, b *storage.Batch)
}

type Options struct {
	TTL          time.Duration
	BuildTimeout time.Duration
	ResultLimit  int
}

// Service 对外提供聚合结果：有效期内复用缓存批次，过期后重新抓取所有站点
type Service struct {
	fetchers  []collector.Fetcher
	store     *storage.Store
	processor *processor.SimpleProcessor

	ttl          time.Duration
	buildTimeout time.Duration
	group        singleflight.Group

	Notifier Notifier
	Log      logger.Logger
	Now      func() time.Time
}

func New(fetchers []collector.Fetcher, store *storage.Store, opts Options, log logger.Logger) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultBuildTimeout
	}
	return &Service{
		fetchers:     fetchers,
		store:        store,
		processor:    processor.NewSimpleProcessor(opts.ResultLimit),
		ttl:          opts.TTL,
		buildTimeout: opts.BuildTimeout,
		Log:          logger.Ensure(log),
		Now:          time.Now,
	}
}

// Sources 按配置顺序返回站点名
func (s *Service) Sources() []string {
	out := make([]string, 0, len(s.fetchers))
	for _, f := range s.fetchers {
		out = append(out, f.Name())
	}
	return out
}

// Feed 返回当前有效批次；缓存缺失或过期时重建，并发调用共享同一次重建
func (s *Service) Feed(ctx context.Context) (*storage.Batch, error) {
	if b, ok := s.store.Current(ctx, s.now()); ok {
		return b, nil
	}
	return s.rebuild(ctx, false)
}

// Refresh 忽略缓存强制重建，供定时预热使用
func (s *Service) Refresh(ctx context.Context) (*storage.Batch, error) {
	return s.rebuild(ctx, true)
}

func (s *Service) rebuild(ctx context.Context, force bool) (*storage.Batch, error) {
	ch := s.group.DoChan(buildKey, func() (any, error) {
		if !force {
			// 排队期间可能已有其它调用完成了重建
			if b, ok := s.store.Current(ctx, s.now()); ok {
				return b, nil
			}
		}
		return s.build(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*storage.Batch), nil
	}
}

func (s *Service) build(parent context.Context) (b *storage.Batch, err error) {
	log := logger.Ensure(s.Log)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorObj("aggregation panicked", "aggregate_panic", map[string]any{
				"panic": fmt.Sprint(r),
			})
			b, err = nil, fmt.Errorf("%w: panic: %v", ErrAggregate, r)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.buildTimeout)
	defer cancel()

	groups := s.fetchAll(ctx)

	now := s.now()
	b = &storage.Batch{
		Articles:  s.processor.Merge(groups, now),
		CreatedAt: now,
		TTL:       s.ttl,
	}
	// 构建截止后 ctx 已失效，保存改用未设截止时间的 parent
	s.store.Save(parent, b)

	log.InfoObj("aggregation batch built", "aggregate_done", map[string]any{
		"sites":    len(s.fetchers),
		"articles": len(b.Articles),
		"elapsed":  time.Since(start).String(),
	})

	if s.Notifier != nil {
		go s.notify(b)
	}
	return b, nil
}

// fetchAll 并发抓取所有站点，结果按站点顺序放入各自槽位；出错、panic 或到构建截止仍未完成的站点留空
func (s *Service) fetchAll(ctx context.Context) [][]collector.Article {
	log := logger.Ensure(s.Log)

	var (
		mu     sync.Mutex
		closed bool
		groups = make([][]collector.Article, len(s.fetchers))
		done   = make([]bool, len(s.fetchers))
	)

	var g errgroup.Group
	for i, f := range s.fetchers {
		g.Go(func() error {
			defer func() {
				mu.Lock()
				done[i] = true
				mu.Unlock()
			}()
			defer func() {
				if r := recover(); r != nil {
					log.ErrorObj("site fetch panicked", "site_panic", map[string]any{
						"site":  f.Name(),
						"panic": fmt.Sprint(r),
					})
				}
			}()

			items, err := f.Fetch(ctx)
			if err != nil {
				log.WarnObj("site fetch failed", "site_error", map[string]any{
					"site":  f.Name(),
					"error": err.Error(),
				})
				return nil
			}

			mu.Lock()
			if !closed {
				groups[i] = items
			}
			mu.Unlock()
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	// 截止后到达的结果一律丢弃，已完成站点的槽位不再变化
	mu.Lock()
	closed = true
	out := make([][]collector.Article, len(groups))
	copy(out, groups)
	var pending []string
	for i, ok := range done {
		if !ok {
			pending = append(pending, s.fetchers[i].Name())
		}
	}
	mu.Unlock()

	if len(pending) > 0 {
		log.WarnObj("build deadline reached, dropping unfinished sites", "site_timeout", map[string]any{
			"sites":   pending,
			"timeout": s.buildTimeout.String(),
		})
	}
	return out
}

func (s *Service) notify(b *storage.Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), s.buildTimeout)
	defer cancel()
	s.Notifier.BatchReady(ctx, b)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
