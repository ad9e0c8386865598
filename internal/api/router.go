package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/processor"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

// FeedProvider 提供当前聚合批次，由 aggregator.Service 实现
type FeedProvider interface {
	Feed(ctx context.Context) (*storage.Batch, error)
	Sources() []string
}

type Server struct {
	feed FeedProvider
	log  logger.Logger
}

func NewServer(feed FeedProvider, log logger.Logger) *Server {
	return &Server{feed: feed, log: logger.Ensure(log)}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/api/aggregate", s.aggregate)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/sources", s.listSources)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// aggregate 返回完整批次（JSON 数组），前端页面直接消费
func (s *Server) aggregate(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate"})
		return
	}
	c.JSON(http.StatusOK, b.Articles)
}

// listArticles 服务端过滤：source / interest 精确匹配，q 在标题与摘要中做不区分大小写的子串匹配
func (s *Server) listArticles(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		internalError(c)
		return
	}

	source := strings.TrimSpace(c.Query("source"))
	interest := strings.TrimSpace(c.Query("interest"))
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}

	items := make([]processor.Record, 0, len(b.Articles))
	for _, r := range b.Articles {
		if source != "" && source != "all" && r.SourceLabel != source {
			continue
		}
		if interest != "" && interest != "all" && !strings.EqualFold(r.Interest, interest) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Summary), q) {
			continue
		}
		items = append(items, r)
		if limit > 0 && len(items) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

type sourceSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// listSources 已配置站点及其在当前批次中的文章数，以及批次中出现的兴趣标签
func (s *Server) listSources(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		internalError(c)
		return
	}

	counts := make(map[string]int)
	interests := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range b.Articles {
		counts[r.SourceLabel]++
		if !seen[r.Interest] {
			seen[r.Interest] = true
			interests = append(interests, r.Interest)
		}
	}

	names := s.feed.Sources()
	sources := make([]sourceSummary, 0, len(names))
	for _, name := range names {
		sources = append(sources, sourceSummary{Name: name, Count: counts[name]})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"sources":   sources,
			"interests": interests,
			"createdAt": b.CreatedAt,
			"expiresAt": b.ExpiresAt(),
		},
	})
}

func (s *Server) batch(c *gin.Context) (*storage.Batch, bool) {
	b, err := s.feed.Feed(c.Request.Context())
	if err != nil {
		s.log.ErrorObj("aggregate request failed", "aggregate_error", map[string]any{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDKey),
			"error":      err.Error(),
		})
		return nil, false
	}
	return b, true
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
