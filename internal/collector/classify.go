package collector

import (
	"regexp"
	"strings"
)

const (
	InterestBangladesh    = "Bangladesh"
	InterestPolitics      = "Politics"
	InterestEconomy       = "Economy"
	InterestBranding      = "Business/Branding"
	InterestSports        = "Sports"
	InterestTechnology    = "Technology"
	InterestInternational = "International"
	InterestGeneral       = "General"
)

type interestRule struct {
	pattern *regexp.Regexp
	label   string
}

// interestRules 按顺序匹配，先命中者生效：同时提到选举和通胀的文章归为 Politics
var interestRules = []interestRule{
	{regexp.MustCompile(`\bbangladesh\b|\bdhaka\b|\brajshahi\b`), InterestBangladesh},
	{regexp.MustCompile(`\belection\b|\bminister\b|\bparliament\b|\bpolitic\b`), InterestPolitics},
	{regexp.MustCompile(`\beconomy\b|\binflation\b|\bgdp\b|\bexport\b|\bimport\b|\bbank\b|remittance|tariff`), InterestEconomy},
	{regexp.MustCompile(`\bbrand\b|\badvertis`), InterestBranding},
	{regexp.MustCompile(`\bsport|asia cup|cricket|football|match`), InterestSports},
	{regexp.MustCompile(`\btech|software|ai|app\b`), InterestTechnology},
}

// ClassifyInterest 基于关键词给文章打一个粗粒度的兴趣标签
func ClassifyInterest(text, source string) string {
	t := strings.ToLower(text)
	for _, r := range interestRules {
		if r.pattern.MatchString(t) {
			return r.label
		}
	}
	if strings.Contains(strings.ToLower(source), "aljazeera") {
		return InterestInternational
	}
	return InterestGeneral
}
