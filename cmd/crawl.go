package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/app"
	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

type crawlOptions struct {
	url         string
	depth       int
	extractOnly bool
}

func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one site and write its reports",
		Long: `Crawls the site at --url to --depth link hops, summarizes every page
and writes the summary and full reports to the configured storage backend.
With --extract-only the extracted page records are printed as JSON instead
and nothing is summarized or stored.`,
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return runCrawlCommand(cmd, a, opts)
		}),
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "seed URL (required)")
	cmd.Flags().IntVar(&opts.depth, "depth", -1, "maximum link depth (default crawler.default_depth)")
	cmd.Flags().BoolVar(&opts.extractOnly, "extract-only", false, "print extracted pages as JSON and skip reports")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, appInstance *app.App, opts *crawlOptions) error {
	depth := opts.depth
	if depth < 0 {
		depth = appInstance.Config().Crawler.DefaultDepth
	}
	out := cmd.OutOrStdout()

	if opts.extractOnly {
		pages, err := appInstance.Engine().Crawl(cmd.Context(), opts.url, depth)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Pages []crawler.PageRecord `json:"pages"`
			Stats crawler.Stats        `json:"stats"`
		}{pages, appInstance.Engine().Stats()}); err != nil {
			return fmt.Errorf("encode pages: %w", err)
		}
		return nil
	}

	res, err := appInstance.Pipeline().Run(cmd.Context(), opts.url, depth)
	if err != nil {
		if errors.Is(err, cmd.Context().Err()) {
			appInstance.Logger().Warn("Crawl interrupted", zap.Error(err))
		}
		return fmt.Errorf("run pipeline: %w", err)
	}
	fmt.Fprintf(out, "Crawled %d pages (run %s)\n", res.Pages, res.RunID)
	fmt.Fprintf(out, "Summary: %s\n", res.SummaryURI)
	fmt.Fprintf(out, "Report:  %s\n", res.ReportURI)
	return nil
}
