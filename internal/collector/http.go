package collector

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

const (
	DefaultUserAgent    = "news-aggregator/1.0 (+https://example.com)"
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxBodyBytes = 2 << 20 // 2MB，防止超大 HTML 拖垮解析

	BackendResty = "resty"
	BackendColly = "colly"
)

// FetchOptions 出站抓取的公共参数
type FetchOptions struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultFetchTimeout
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// NewPageFetcher 按 backend 名称构造抓取器，空值默认 resty
func NewPageFetcher(backend string, opts FetchOptions, log logger.Logger) (PageFetcher, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendResty:
		return NewRestyFetcher(opts, log), nil
	case BackendColly:
		return NewCollyFetcher(opts, log), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend %q", backend)
	}
}

// RestyFetcher 基于 resty 的页面抓取器，自行处理 br/gzip/deflate 解压与字符集转换
type RestyFetcher struct {
	client  *resty.Client
	maxBody int64
	log     logger.Logger
}

func NewRestyFetcher(opts FetchOptions, log logger.Logger) *RestyFetcher {
	opts = opts.withDefaults()
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Encoding", "br, gzip, deflate")

	return &RestyFetcher{
		client:  client,
		maxBody: opts.MaxBodyBytes,
		log:     logger.Ensure(log),
	}
}

// FetchPage 任何失败都只记录告警并返回 nil
func (f *RestyFetcher) FetchPage(ctx context.Context, pageURL string) []byte {
	body, err := f.fetch(ctx, pageURL)
	if err != nil {
		f.log.WarnObj("page fetch failed", "fetch_error", map[string]any{
			"url":   pageURL,
			"error": err.Error(),
		})
		return nil
	}
	return body
}

func (f *RestyFetcher) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	raw := resp.RawBody()
	if raw == nil {
		return nil, fmt.Errorf("empty response body")
	}
	defer raw.Close()

	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(raw, 4096))
		return nil, fmt.Errorf("unexpected status %d", code)
	}

	decoded, err := decodeContent(raw, resp.Header().Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", resp.Header().Get("Content-Encoding"), err)
	}
	defer decoded.Close()

	utf8Reader, err := charset.NewReader(decoded, resp.Header().Get("Content-Type"))
	if err != nil {
		utf8Reader = decoded
	}

	body, err := io.ReadAll(io.LimitReader(utf8Reader, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// decodeContent 按 Content-Encoding 包装解压 reader
func decodeContent(r io.Reader, encoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		// HTTP 的 deflate 是 zlib 封装；少数服务器直接发送裸 deflate 流
		br := bufio.NewReader(r)
		if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	default:
		return io.NopCloser(r), nil
	}
}

// isZlibHeader 校验 RFC 1950 头：CM=8 且 CMF/FLG 组成的 16 位数能被 31 整除
func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
