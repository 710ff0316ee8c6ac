package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gosaq/saq-crawler/internal/metrics"
	"github.com/gosaq/saq-crawler/internal/saq"
)

// fakeCatalog serves fixed pages of stubs. Requests past the last page echo
// page 1's rendered number, the way the real catalog wraps around.
type fakeCatalog struct {
	pages [][]saq.ProductStub
}

func (f *fakeCatalog) Page(_ context.Context, number int) ([]saq.ProductStub, bool, error) {
	if number > len(f.pages) {
		return nil, true, nil
	}
	return f.pages[number-1], false, nil
}

type failingCatalog struct {
	failOnPage int
	inner      fakeCatalog
}

func (f *failingCatalog) Page(ctx context.Context, number int) ([]saq.ProductStub, bool, error) {
	if number == f.failOnPage {
		return nil, false, fmt.Errorf("catalog unavailable")
	}
	return f.inner.Page(ctx, number)
}

// fakeProducts converts stubs into minimal extracted products, failing for
// any code in failCodes.
type fakeProducts struct {
	failCodes map[string]bool
}

func (f *fakeProducts) Product(_ context.Context, stub saq.ProductStub) (*saq.ExtractedProduct, error) {
	if f.failCodes[stub.Code] {
		return nil, fmt.Errorf("product page unavailable")
	}
	return saq.NewExtractedProduct(saq.DetailedInfo{SAQCode: stub.Code}, &saq.LDProduct{SKU: stub.Code}, nil), nil
}

// fakePersister records persisted codes, failing for any code in failCodes.
type fakePersister struct {
	mu        sync.Mutex
	persisted []string
	failCodes map[string]bool
}

func (f *fakePersister) PersistProduct(_ context.Context, product *saq.ExtractedProduct) error {
	code := product.DetailedInfo.SAQCode
	if f.failCodes[code] {
		return fmt.Errorf("store unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, code)
	return nil
}

func (f *fakePersister) codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.persisted...)
}

func stubs(codes ...string) []saq.ProductStub {
	out := make([]saq.ProductStub, 0, len(codes))
	for _, code := range codes {
		out = append(out, saq.ProductStub{Code: code, Name: "Product " + code})
	}
	return out
}

func newTestPipeline(catalog CatalogSource, products ProductSource, persister Persister, cfg Config) *Pipeline {
	return New(catalog, products, persister, cfg, zap.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func TestRunPersistsEveryStub(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{pages: [][]saq.ProductStub{
		stubs("11111111", "22222222"),
		stubs("33333333"),
	}}
	products := &fakeProducts{}
	persister := &fakePersister{}

	p := newTestPipeline(catalog, products, persister, Config{Workers: 4, QueueDepth: 2})
	require.NoError(t, p.Run(context.Background()))

	assert.ElementsMatch(t, []string{"11111111", "22222222", "33333333"}, persister.codes())
}

func TestRunTerminatesOnPaginationWraparound(t *testing.T) {
	t.Parallel()

	// One real page; requesting page 2 reports the end of the catalog.
	catalog := &fakeCatalog{pages: [][]saq.ProductStub{stubs("11111111")}}
	persister := &fakePersister{}

	p := newTestPipeline(catalog, &fakeProducts{}, persister, Config{Workers: 2, QueueDepth: 1})
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"11111111"}, persister.codes())
}

func TestRunReportsWorkerFetchFailure(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{pages: [][]saq.ProductStub{
		stubs("11111111", "22222222", "33333333", "44444444"),
	}}
	products := &fakeProducts{failCodes: map[string]bool{"22222222": true}}

	p := newTestPipeline(catalog, products, &fakePersister{}, Config{Workers: 1, QueueDepth: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch product 22222222")
}

func TestRunReportsPersistFailure(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{pages: [][]saq.ProductStub{
		stubs("11111111", "22222222", "33333333", "44444444", "55555555"),
	}}
	persister := &fakePersister{failCodes: map[string]bool{"33333333": true}}

	p := newTestPipeline(catalog, &fakeProducts{}, persister, Config{Workers: 2, QueueDepth: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist product 33333333")
}

func TestRunReportsProducerFailure(t *testing.T) {
	t.Parallel()

	catalog := &failingCatalog{
		failOnPage: 2,
		inner:      fakeCatalog{pages: [][]saq.ProductStub{stubs("11111111"), stubs("22222222")}},
	}

	p := newTestPipeline(catalog, &fakeProducts{}, &fakePersister{}, Config{Workers: 2, QueueDepth: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch catalog page 2")
}

func TestRunStopsEnqueueingAfterWorkerFailure(t *testing.T) {
	t.Parallel()

	// Far more stubs than queue capacity: if the failed worker did not
	// close the queue, the producer would block forever on a full queue
	// with no consumers and Run would never return.
	var pages [][]saq.ProductStub
	for i := 0; i < 50; i++ {
		pages = append(pages, stubs(fmt.Sprintf("%08d", i)))
	}
	catalog := &fakeCatalog{pages: pages}
	products := &fakeProducts{failCodes: map[string]bool{"00000000": true}}

	p := newTestPipeline(catalog, products, &fakePersister{}, Config{Workers: 1, QueueDepth: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch product 00000000")
}
