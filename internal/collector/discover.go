package collector

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// 静态资源链接（图片、压缩包、视频等），查询串不参与判断
var assetLinkRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg|pdf|zip|mp4)(\?.*)?$`)

// DiscoverLinks 从首页 HTML 中按文档顺序提取本站文章链接，去重后截取前 limit 个
func DiscoverLinks(html []byte, baseURL, domain string, limit int) []string {
	if limit <= 0 || len(html) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	links := make([]string, 0, limit)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := NormalizeURL(href, baseURL)
		if !ok || !isArticleCandidate(link, domain) {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	if len(links) > limit {
		links = links[:limit]
	}
	return links
}

// isArticleCandidate 过滤邮件、脚本、锚点链接，以及外站和静态资源
func isArticleCandidate(link, domain string) bool {
	lower := strings.ToLower(link)
	if strings.Contains(lower, "mailto:") || strings.Contains(lower, "javascript:") || strings.Contains(link, "#") {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || !strings.Contains(strings.ToLower(u.Hostname()), strings.ToLower(domain)) {
		return false
	}
	return !assetLinkRe.MatchString(link)
}
