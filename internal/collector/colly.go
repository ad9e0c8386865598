package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gocolly/colly/v2"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

// CollyFetcher 每次抓取新建一个 colly collector；与 resty 后端一致，只接受 2xx 响应
type CollyFetcher struct {
	opts FetchOptions
	log  logger.Logger
}

func NewCollyFetcher(opts FetchOptions, log logger.Logger) *CollyFetcher {
	return &CollyFetcher{opts: opts.withDefaults(), log: logger.Ensure(log)}
}

func (f *CollyFetcher) FetchPage(ctx context.Context, pageURL string) []byte {
	body, err := f.fetch(ctx, pageURL)
	if err != nil {
		f.log.WarnObj("page fetch failed", "fetch_error", map[string]any{
			"url":     pageURL,
			"error":   err.Error(),
			"backend": BackendColly,
		})
		return nil
	}
	return body
}

func (f *CollyFetcher) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ParseHTTPErrorResponse 让所有状态码进入 OnResponse，由下面统一按 2xx 判断
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.MaxBodySize(int(f.opts.MaxBodyBytes)),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.opts.Timeout)
	c.WithTransport(&contextTransport{ctx: ctx, next: http.DefaultTransport})

	var (
		body      []byte
		statusErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			statusErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		body = r.Body
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("colly visit: %w", err)
	}
	if statusErr != nil {
		return nil, statusErr
	}
	if body == nil {
		return nil, fmt.Errorf("no response body")
	}
	return body, nil
}

// contextTransport 把调用方的 ctx 合并到 colly 发出的请求上，任一方取消或超时都会中断请求
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}

	resp, err := t.next.RoundTrip(req.WithContext(rctx))
	if err != nil {
		release()
		return nil, err
	}
	resp.Body = &releaseOnClose{ReadCloser: resp.Body, release: release}
	return resp, nil
}

type releaseOnClose struct {
	io.ReadCloser
	release func()
}

func (b *releaseOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
