// Package metrics exposes Prometheus instrumentation for the crawl pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the crawl counters so the pipeline can be instrumented
// without reaching for package-level state in tests.
type Metrics struct {
	// CatalogPages counts catalog listing pages fetched successfully.
	CatalogPages prometheus.Counter
	// ProductPages counts product detail pages fetched and extracted.
	ProductPages prometheus.Counter
	// ProductsPersisted counts products written through the full persistence path.
	ProductsPersisted prometheus.Counter
	// Errors counts fatal fetch, extraction, and store errors.
	Errors prometheus.Counter
}

// New registers the crawl counters with the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CatalogPages: factory.NewCounter(prometheus.CounterOpts{
			Name: "saqcrawler_catalog_pages_total",
			Help: "The total number of catalog pages fetched.",
		}),
		ProductPages: factory.NewCounter(prometheus.CounterOpts{
			Name: "saqcrawler_product_pages_total",
			Help: "The total number of product pages fetched and extracted.",
		}),
		ProductsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "saqcrawler_products_persisted_total",
			Help: "The total number of products persisted to the store.",
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "saqcrawler_errors_total",
			Help: "The total number of fatal crawl errors.",
		}),
	}
}
