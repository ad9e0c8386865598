package collector

import (
	"context"
	"errors"
)

// ErrPageUnavailable 页面抓取失败（网络错误、非 2xx、超时）时由站点采集器返回
var ErrPageUnavailable = errors.New("page unavailable")

// Site 一个需要抓取首页的新闻站点，Name 同时用作域名子串匹配与来源标签
type Site struct {
	Name string `yaml:"name" json:"name"`
	Base string `yaml:"base" json:"base"`
}

// DefaultSites 内置的站点列表，顺序即合并时的展开顺序
func DefaultSites() []Site {
	return []Site{
		{Name: "tbsnews.net", Base: "https://www.tbsnews.net"},
		{Name: "thedailystar.net", Base: "https://www.thedailystar.net"},
		{Name: "aljazeera.com", Base: "https://www.aljazeera.com"},
		{Name: "adweek.com", Base: "https://www.adweek.com"},
	}
}

// Article 单篇文章采集后的基础结构，PubTs 由 processor 在合并时计算
type Article struct {
	ID          string
	Title       string
	Link        string
	PubDate     string
	Summary     string
	Image       string
	SourceLabel string
	Interest    string
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Article, error)
}

// PageFetcher 抓取单个页面；返回 nil 表示页面不可用，调用方无需区分失败原因
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) []byte
}
