package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/naxeeb/news-aggregator-live/internal/collector"
)

type Config struct {
	AppPort string
	WebRoot string

	CORSAllowOrigins []string
	BasicAuthUser    string
	BasicAuthPass    string

	RedisAddr   string
	RefreshCron string

	CacheTTL        time.Duration
	ResultLimit     int
	LinksPerSite    int
	LinkConcurrency int

	FetchTimeout time.Duration
	BuildTimeout time.Duration
	UserAgent    string
	FetchBackend string
	MaxBodyBytes int64

	Sites          []collector.Site
	PublishersFile string

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"APP_PORT":           "3000",
	"WEB_ROOT":           "public",
	"CORS_ALLOW_ORIGINS": "*",
	"APP_BASIC_USER":     "",
	"APP_BASIC_PASS":     "",
	"REDIS_ADDR":         "",
	"REFRESH_CRON":       "",
	"CACHE_TTL":          "300s",
	"RESULT_LIMIT":       "80",
	"LINKS_PER_SITE":     "8",
	"LINK_CONCURRENCY":   "8",
	"FETCH_TIMEOUT":      "15s",
	"BUILD_TIMEOUT":      "60s",
	"USER_AGENT":         collector.DefaultUserAgent,
	"FETCH_BACKEND":      collector.BackendResty,
	"MAX_BODY_BYTES":     "2097152",
	"SITES_FILE":         "",
	"PUBLISHERS_FILE":    "",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
}

// Load 先读取 .env（不存在则忽略），再以环境变量覆盖默认值
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()

	p := parser{v: v}
	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		WebRoot:          v.GetString("WEB_ROOT"),
		CORSAllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		BasicAuthUser:    v.GetString("APP_BASIC_USER"),
		BasicAuthPass:    v.GetString("APP_BASIC_PASS"),
		RedisAddr:        strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RefreshCron:      strings.TrimSpace(v.GetString("REFRESH_CRON")),
		CacheTTL:         p.duration("CACHE_TTL"),
		ResultLimit:      p.positiveInt("RESULT_LIMIT"),
		LinksPerSite:     p.positiveInt("LINKS_PER_SITE"),
		LinkConcurrency:  p.positiveInt("LINK_CONCURRENCY"),
		FetchTimeout:     p.duration("FETCH_TIMEOUT"),
		BuildTimeout:     p.duration("BUILD_TIMEOUT"),
		UserAgent:        v.GetString("USER_AGENT"),
		FetchBackend:     strings.ToLower(strings.TrimSpace(v.GetString("FETCH_BACKEND"))),
		MaxBodyBytes:     int64(p.positiveInt("MAX_BODY_BYTES")),
		PublishersFile:   strings.TrimSpace(v.GetString("PUBLISHERS_FILE")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}
	if p.err != nil {
		return nil, p.err
	}

	switch cfg.FetchBackend {
	case collector.BackendResty, collector.BackendColly:
	default:
		return nil, fmt.Errorf("FETCH_BACKEND: unknown backend %q", cfg.FetchBackend)
	}

	cfg.Sites = collector.DefaultSites()
	if path := strings.TrimSpace(v.GetString("SITES_FILE")); path != "" {
		sites, err := LoadSites(path)
		if err != nil {
			return nil, err
		}
		cfg.Sites = sites
	}

	return cfg, nil
}

// FetchOptions 页面抓取相关配置
func (c *Config) FetchOptions() collector.FetchOptions {
	return collector.FetchOptions{
		Timeout:      c.FetchTimeout,
		UserAgent:    c.UserAgent,
		MaxBodyBytes: c.MaxBodyBytes,
	}
}

type sitesFile struct {
	Sites []collector.Site `yaml:"sites"`
}

// LoadSites 从 YAML 文件读取站点列表，顺序即合并顺序
func LoadSites(path string) ([]collector.Site, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	var f sitesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode sites file: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, errors.New("sites file contains no sites")
	}

	for i := range f.Sites {
		s := &f.Sites[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Base = strings.TrimRight(strings.TrimSpace(s.Base), "/")
		if s.Name == "" {
			return nil, fmt.Errorf("sites[%d]: name is required", i)
		}
		u, err := url.Parse(s.Base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("sites[%d]: base %q must be an absolute url", i, s.Base)
		}
	}
	return f.Sites, nil
}

// parser 记录第一个解析错误，后续字段继续取值
type parser struct {
	v   *viper.Viper
	err error
}

// duration 支持 Go duration 字符串，也接受纯数字（秒）
func (p *parser) duration(key string) time.Duration {
	raw := strings.TrimSpace(p.v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.fail(fmt.Errorf("%s: invalid duration %q", key, raw))
		return 0
	}
	return d
}

func (p *parser) positiveInt(key string) int {
	raw := strings.TrimSpace(p.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		p.fail(fmt.Errorf("%s: invalid positive integer %q", key, raw))
		return 0
	}
	return n
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
