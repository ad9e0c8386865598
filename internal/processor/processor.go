package processor

import (
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/naxeeb/news-aggregator-live/internal/collector"
)

const DefaultResultLimit = 80

// Record 对外输出的文章结构，字段名与前端约定一致
type Record struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	PubDate     string  `json:"pubDate"`
	Summary     string  `json:"summary"`
	Image       *string `json:"image"`
	SourceLabel string  `json:"sourceLabel"`
	Interest    string  `json:"interest"`
	PubTs       int64   `json:"pubTs"`
}

// SimpleProcessor 做合并前的清洗：UTF-8 规范化、计算 pubTs、排序与截断
type SimpleProcessor struct {
	Limit int
}

func NewSimpleProcessor(limit int) *SimpleProcessor {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	return &SimpleProcessor{Limit: limit}
}

// Merge 按给定顺序展开各站点结果，按 pubTs 倒序稳定排序后截取前 Limit 条
func (p *SimpleProcessor) Merge(groups [][]collector.Article, now time.Time) []Record {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	out := make([]Record, 0, total)
	for _, g := range groups {
		for _, it := range g {
			out = append(out, toRecord(it, now))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PubTs > out[j].PubTs
	})

	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

func toRecord(it collector.Article, now time.Time) Record {
	r := Record{
		ID:          it.ID,
		Title:       toValidUTF8(it.Title),
		Link:        it.Link,
		PubDate:     it.PubDate,
		Summary:     toValidUTF8(it.Summary),
		SourceLabel: it.SourceLabel,
		Interest:    it.Interest,
		PubTs:       ParsePubTs(it.PubDate, now),
	}
	if it.Image != "" {
		img := it.Image
		r.Image = &img
	}
	if r.Interest == "" {
		r.Interest = collector.InterestGeneral
	}
	return r
}

// ParsePubTs 把各站点五花八门的时间字符串解析为毫秒时间戳，解析失败时用 now
func ParsePubTs(pubDate string, now time.Time) int64 {
	pubDate = strings.TrimSpace(pubDate)
	if pubDate == "" {
		return now.UnixMilli()
	}
	if t, err := time.Parse(time.RFC3339Nano, pubDate); err == nil {
		return t.UnixMilli()
	}
	t, err := dateparse.ParseIn(pubDate, time.UTC)
	if err != nil {
		return now.UnixMilli()
	}
	return t.UnixMilli()
}

// toValidUTF8 将字符串规范为合法 UTF-8（部分站点页面编码混杂）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
