package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/naxeeb/news-aggregator-live/internal/aggregator"
	"github.com/naxeeb/news-aggregator-live/internal/collector"
	"github.com/naxeeb/news-aggregator-live/internal/config"
	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

var (
	sitesFilter string
	limit       int
	pretty      bool
	verbose     bool
)

// 仅执行一轮聚合并把结果以 JSON 打印到标准输出，适合手动排查抓取效果
func main() {
	rootCmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one aggregation pass and print the articles as JSON",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}

	rootCmd.Flags().StringVarP(&sitesFilter, "sites", "s", "", "comma separated site names to aggregate (default: all configured)")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of articles (default: RESULT_LIMIT)")
	rootCmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "indent JSON output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sites, err := selectSites(cfg.Sites, sitesFilter)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.ResultLimit
	}

	pages, err := collector.NewPageFetcher(cfg.FetchBackend, cfg.FetchOptions(), log)
	if err != nil {
		return err
	}
	fetchers := collector.NewSiteFetchers(sites, pages, cfg.LinksPerSite, cfg.LinkConcurrency, log)

	svc := aggregator.New(fetchers, storage.NewStore("", log), aggregator.Options{
		TTL:          cfg.CacheTTL,
		BuildTimeout: cfg.BuildTimeout,
		ResultLimit:  limit,
	}, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	batch, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(batch.Articles)
}

func selectSites(all []collector.Site, filter string) ([]collector.Site, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return all, nil
	}

	byName := make(map[string]collector.Site, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}

	var out []collector.Site
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown site %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
