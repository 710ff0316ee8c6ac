// Package pipeline orchestrates a full catalog crawl: one sequential
// catalog pager feeding a fixed pool of fetch-and-persist workers through a
// bounded queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gosaq/saq-crawler/internal/metrics"
	"github.com/gosaq/saq-crawler/internal/queue"
	"github.com/gosaq/saq-crawler/internal/saq"
)

// CatalogSource walks the paginated product catalog. done=true means the
// requested page is past the end of the catalog.
type CatalogSource interface {
	Page(ctx context.Context, number int) (stubs []saq.ProductStub, done bool, err error)
}

// ProductSource fetches and extracts one product detail page.
type ProductSource interface {
	Product(ctx context.Context, stub saq.ProductStub) (*saq.ExtractedProduct, error)
}

// Persister writes one extracted product and its associations to the store.
type Persister interface {
	PersistProduct(ctx context.Context, product *saq.ExtractedProduct) error
}

// Config controls pipeline fan-out.
type Config struct {
	Workers    int
	QueueDepth int
}

// Pipeline coordinates one crawl run. The producer enqueues stubs in
// catalog order; workers consume them with no ordering guarantee among
// products. The first failure anywhere closes the queue, which is the only
// stop signal: peers finish their in-flight product, drain nothing further,
// and wind down.
type Pipeline struct {
	catalog   CatalogSource
	products  ProductSource
	persister Persister
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New constructs a Pipeline.
func New(
	catalog CatalogSource,
	products ProductSource,
	persister Persister,
	cfg Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 8
	}
	return &Pipeline{
		catalog:   catalog,
		products:  products,
		persister: persister,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Run executes one full crawl and blocks until every task has finished.
//
// The producer's result takes precedence: its error is reported over any
// worker error. Otherwise the first worker error (by worker index; order
// among workers is immaterial) becomes the crawl's outcome. A successful
// crawl requires the producer and every worker to finish cleanly.
func (p *Pipeline) Run(ctx context.Context) error {
	q := queue.New(p.cfg.QueueDepth)

	producerErr := make(chan error, 1)
	go func() {
		producerErr <- p.produce(ctx, q)
	}()

	workerErrs := make([]error, p.cfg.Workers)
	var wg sync.WaitGroup
	for i := range workerErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			workerErrs[i] = p.work(ctx, q)
		}(i)
	}

	err := <-producerErr
	wg.Wait()

	if err != nil {
		return err
	}
	for _, workerErr := range workerErrs {
		if workerErr != nil {
			return workerErr
		}
	}
	return nil
}

// produce walks catalog pages sequentially from page 1, enqueueing every
// stub with one blocking send each, and closes the queue when it stops for
// any reason. Backpressure from the bounded queue keeps the pager from
// outrunning persistence.
func (p *Pipeline) produce(ctx context.Context, q *queue.Queue) error {
	defer q.Close()

	for page := 1; ; page++ {
		stubs, done, err := p.catalog.Page(ctx, page)
		if err != nil {
			p.metrics.Errors.Inc()
			return fmt.Errorf("fetch catalog page %d: %w", page, err)
		}
		if done {
			p.logger.Info("reached end of catalog", zap.Int("pages", page-1))
			return nil
		}
		p.metrics.CatalogPages.Inc()

		for _, stub := range stubs {
			if err := q.Enqueue(ctx, stub); err != nil {
				if errors.Is(err, queue.ErrClosed) {
					// A worker failed and closed the queue; its error is
					// the one worth reporting, not this symptom of it.
					return nil
				}
				return fmt.Errorf("enqueue product %s: %w", stub.Code, err)
			}
		}
	}
}

// work consumes stubs until the queue is closed and drained, fetching and
// persisting each product. Any error closes the queue so sibling workers
// stop instead of doing now-pointless work.
func (p *Pipeline) work(ctx context.Context, q *queue.Queue) error {
	for {
		stub, err := q.Dequeue(ctx)
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			q.Close()
			return err
		}

		extracted, err := p.products.Product(ctx, stub)
		if err != nil {
			p.metrics.Errors.Inc()
			q.Close()
			return fmt.Errorf("fetch product %s: %w", stub.Code, err)
		}
		p.metrics.ProductPages.Inc()

		if err := p.persister.PersistProduct(ctx, extracted); err != nil {
			p.metrics.Errors.Inc()
			q.Close()
			return fmt.Errorf("persist product %s: %w", stub.Code, err)
		}
		p.metrics.ProductsPersisted.Inc()
		p.logger.Debug("persisted product", zap.String("saq_code", stub.Code), zap.String("name", stub.Name))
	}
}
