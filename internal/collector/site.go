package collector

import (
	"context"
	"crypto/sha1" //nolint:gosec // 仅用于生成稳定 id
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

const (
	DefaultLinksPerSite    = 8
	DefaultLinkConcurrency = 8

	pubDateLayout = "2006-01-02T15:04:05.000Z"
)

// SiteFetcher 抓取一个站点首页，发现文章链接后并发提取每篇文章
type SiteFetcher struct {
	Site        Site
	Pages       PageFetcher
	Limit       int
	Concurrency int
	Log         logger.Logger
	Now         func() time.Time
}

func NewSiteFetcher(site Site, pages PageFetcher, log logger.Logger) *SiteFetcher {
	return &SiteFetcher{
		Site:        site,
		Pages:       pages,
		Limit:       DefaultLinksPerSite,
		Concurrency: DefaultLinkConcurrency,
		Log:         logger.Ensure(log),
		Now:         time.Now,
	}
}

func (s *SiteFetcher) Name() string {
	return s.Site.Name
}

type linkResult struct {
	article Article
	ok      bool
	err     error
}

// Fetch 首页不可用时返回 ErrPageUnavailable；单个链接失败只会让该链接缺席
func (s *SiteFetcher) Fetch(ctx context.Context) ([]Article, error) {
	log := logger.Ensure(s.Log)

	home := s.Pages.FetchPage(ctx, s.Site.Base)
	if home == nil {
		return nil, fmt.Errorf("%s homepage: %w", s.Site.Name, ErrPageUnavailable)
	}

	links := DiscoverLinks(home, s.Site.Base, s.Site.Name, s.limit())
	if len(links) == 0 {
		log.InfoObj("no article links discovered", "discover_empty", map[string]any{
			"site": s.Site.Name,
		})
		return []Article{}, nil
	}

	now := s.now()
	extractor := &Extractor{Pages: s.Pages}

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, s.concurrency())
		results = make([]linkResult, len(links))
	)

	for i, link := range links {
		wg.Add(1)
		go func(idx int, link string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[idx] = linkResult{err: fmt.Errorf("panic: %v", r)}
				}
			}()

			results[idx] = s.buildArticle(ctx, extractor, link, now)
		}(i, link)
	}
	wg.Wait()

	articles := make([]Article, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			log.WarnObj("article extraction failed", "article_error", map[string]any{
				"site":  s.Site.Name,
				"url":   links[i],
				"error": r.err.Error(),
			})
			continue
		}
		if r.ok {
			articles = append(articles, r.article)
		}
	}

	log.DebugObj("site aggregated", "site_done", map[string]any{
		"site":     s.Site.Name,
		"links":    len(links),
		"articles": len(articles),
	})
	return articles, nil
}

// buildArticle 没有标题的页面直接丢弃，不算错误
func (s *SiteFetcher) buildArticle(ctx context.Context, extractor *Extractor, link string, now time.Time) linkResult {
	meta, ok := extractor.Extract(ctx, link)
	if !ok || meta.Title == "" {
		return linkResult{}
	}

	pubDate := meta.PubDate
	if pubDate == "" {
		pubDate = now.UTC().Format(pubDateLayout)
	}

	return linkResult{
		ok: true,
		article: Article{
			ID:          ArticleID(s.Site.Name, link),
			Title:       meta.Title,
			Link:        link,
			PubDate:     pubDate,
			Summary:     meta.Summary,
			Image:       meta.Image,
			SourceLabel: s.Site.Name,
			Interest:    ClassifyInterest(meta.Title+" "+meta.Summary, s.Site.Name),
		},
	}
}

// ArticleID 由站点名与链接生成稳定 id，允许极小概率冲突
func ArticleID(source, link string) string {
	sum := sha1.Sum([]byte(link)) //nolint:gosec
	return source + "-" + hex.EncodeToString(sum[:])[:12]
}

func (s *SiteFetcher) limit() int {
	if s.Limit <= 0 {
		return DefaultLinksPerSite
	}
	return s.Limit
}

func (s *SiteFetcher) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultLinkConcurrency
	}
	return s.Concurrency
}

func (s *SiteFetcher) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// NewSiteFetchers 为每个站点创建采集器，共享同一个 PageFetcher；返回顺序即站点顺序
func NewSiteFetchers(sites []Site, pages PageFetcher, limit, concurrency int, log logger.Logger) []Fetcher {
	out := make([]Fetcher, 0, len(sites))
	for _, site := range sites {
		f := NewSiteFetcher(site, pages, log)
		if limit > 0 {
			f.Limit = limit
		}
		if concurrency > 0 {
			f.Concurrency = concurrency
		}
		out = append(out, f)
	}
	return out
}
