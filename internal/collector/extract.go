package collector

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleMeta 单篇文章页上提取到的元数据，字段缺失时为空字符串
type ArticleMeta struct {
	Title   string
	Summary string
	Image   string
	PubDate string
	Link    string
}

// fieldExtractor 从文档中取一个候选值，取不到返回空串
type fieldExtractor func(doc *goquery.Document) string

// 各字段的兜底顺序：靠前的优先
var (
	titleChain = []fieldExtractor{
		metaProperty("og:title"),
		firstText("title"),
		firstText("h1"),
	}
	summaryChain = []fieldExtractor{
		metaProperty("og:description"),
		metaName("description"),
		firstText("p"),
	}
	pubDateChain = []fieldExtractor{
		metaProperty("article:published_time"),
		firstAttr("time", "datetime"),
		firstText("time"),
	}
	imageChain = []fieldExtractor{
		metaProperty("og:image"),
		firstInlineImage,
	}
)

// Extractor 抓取文章页并提取元数据
type Extractor struct {
	Pages PageFetcher
}

// Extract 抓取 pageURL 并解析；页面不可用时返回 false，标题为空也照常返回由调用方决定去留
func (e *Extractor) Extract(ctx context.Context, pageURL string) (ArticleMeta, bool) {
	html := e.Pages.FetchPage(ctx, pageURL)
	if html == nil {
		return ArticleMeta{}, false
	}
	return ParseArticleMeta(html, pageURL), true
}

// ParseArticleMeta 对 HTML 依次执行各字段的兜底链
func ParseArticleMeta(html []byte, pageURL string) ArticleMeta {
	meta := ArticleMeta{Link: pageURL}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return meta
	}

	meta.Title = firstOf(doc, titleChain)
	meta.Summary = firstOf(doc, summaryChain)
	meta.PubDate = firstOf(doc, pubDateChain)

	if img := firstOf(doc, imageChain); img != "" {
		if abs, ok := NormalizeURL(img, pageURL); ok {
			meta.Image = abs
		}
	}
	return meta
}

func firstOf(doc *goquery.Document, chain []fieldExtractor) string {
	for _, fn := range chain {
		if v := collapseSpace(fn(doc)); v != "" {
			return v
		}
	}
	return ""
}

func metaProperty(property string) fieldExtractor {
	return metaAttr(`meta[property="` + property + `"]`)
}

func metaName(name string) fieldExtractor {
	return metaAttr(`meta[name="` + name + `"]`)
}

func metaAttr(sel string) fieldExtractor {
	return func(doc *goquery.Document) string {
		v, _ := doc.Find(sel).First().Attr("content")
		return v
	}
}

func firstText(sel string) fieldExtractor {
	return func(doc *goquery.Document) string {
		return doc.Find(sel).First().Text()
	}
}

func firstAttr(sel, attr string) fieldExtractor {
	return func(doc *goquery.Document) string {
		v, _ := doc.Find(sel).First().Attr(attr)
		return v
	}
}

// firstInlineImage 取第一张不像雪碧图或 logo 的图片，兼容懒加载的 data-src
func firstInlineImage(doc *goquery.Document) string {
	var found string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.Contains(src, "sprite") || strings.Contains(src, "logo") {
			return true
		}
		found = src
		return false
	})
	return found
}

// collapseSpace 把连续空白压成一个空格并去掉首尾空白
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
