// Package cmd defines and implements the CLI commands for the saq-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gosaq/saq-crawler/internal/app"
	"github.com/gosaq/saq-crawler/internal/pipeline"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
// It runs one full crawl of the product catalog: the run succeeds only when
// the catalog pager and every product worker finish cleanly.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a full crawl of the product catalog",
		Long: `Walks the catalog page by page, fetching and persisting every listed
product through a fixed pool of workers. The first fetch, extraction, or
store error stops the crawl and is reported as the run's outcome.`,

		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	pipe := pipeline.New(
		appInstance.SAQ(),
		appInstance.SAQ(),
		appInstance.Store(),
		pipeline.Config{
			Workers:    appInstance.Config().Crawler.Workers,
			QueueDepth: appInstance.Config().Crawler.QueueDepth,
		},
		appInstance.Logger(),
		appInstance.Metrics(),
	)

	if err := pipe.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	appInstance.Logger().Info("crawl finished")
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
