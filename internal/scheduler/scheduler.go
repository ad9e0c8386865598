package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

// Refresher 强制重建聚合批次
type Refresher interface {
	Refresh(ctx context.Context) (*storage.Batch, error)
}

// Scheduler 按 cron 表达式定时预热缓存，让用户请求尽量命中有效批次
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	timeout time.Duration
	log     logger.Logger

	// StartupDelay 大于 0 时启动后延迟执行首轮预热，避免与首屏请求争抢资源
	StartupDelay time.Duration
}

func New(spec string, target Refresher, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		target:  target,
		timeout: timeout,
		log:     logger.Ensure(log),
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.StartupDelay > 0 {
		time.AfterFunc(s.StartupDelay, s.runOnce)
	}
}

// Stop 停止调度，返回的 context 在进行中的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发预热
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.InfoObj("start refresh job", "refresh_start", nil)
	b, err := s.target.Refresh(ctx)
	if err != nil {
		s.log.ErrorObj("refresh job failed", "refresh_error", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.log.InfoObj("refresh job done", "refresh_done", map[string]any{
		"articles": len(b.Articles),
	})
}
