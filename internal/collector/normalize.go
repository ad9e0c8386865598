package collector

import (
	"net/url"
	"strings"
)

// NormalizeURL 将 href 解析为绝对地址：
// 协议相对地址补 https:，http 开头原样返回，其余按 base 解析；解析失败返回 false
func NormalizeURL(href, base string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	if strings.HasPrefix(href, "http") {
		return href, true
	}

	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return baseURL.ResolveReference(ref).String(), true
}
