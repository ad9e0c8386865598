package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
)

type Options struct {
	WebRoot          string
	CORSAllowOrigins []string
	BasicAuthUser    string
	BasicAuthPass    string
}

// NewEngine 组装中间件、API 路由与前端静态文件
func NewEngine(s *Server, opts Options, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(log))
	if len(opts.CORSAllowOrigins) > 0 {
		r.Use(cors(opts.CORSAllowOrigins))
	}
	// 若配置了全局访问密码，则启用 Basic Auth 保护
	if opts.BasicAuthUser != "" && opts.BasicAuthPass != "" {
		r.Use(basicAuth(opts.BasicAuthUser, opts.BasicAuthPass))
	}

	s.RegisterRoutes(r)

	if opts.WebRoot != "" {
		r.NoRoute(staticHandler(opts.WebRoot))
	}
	return r
}

// staticHandler 托管前端目录：存在的文件直接返回，其余 GET 回退到 index.html
func staticHandler(root string) gin.HandlerFunc {
	indexFile := filepath.Join(root, "index.html")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "not found"})
			return
		}

		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			c.File(name)
			return
		}
		c.File(indexFile)
	}
}
