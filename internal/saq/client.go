// Package saq fetches and extracts product data from the SAQ website.
//
// A Client exposes two operations: Page walks the paginated catalog listing
// and Product fetches one product detail page. Both work from the JSON-LD
// blocks the site embeds, plus the detailed-info section on product pages.
package saq

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	currentPageSelector  = ".pages .pages-items .current .page span:nth-child(2)"
	ldScriptSelector     = "script[type='application/ld+json']"
	detailedInfoSelector = "#product-data-item-additional ul li [data-th]"
)

// ProductStub is a reference to one catalog entry: enough identity to log
// and a URL to fetch its detail page. Stubs are produced by catalog pages
// and consumed by product workers; they are never persisted.
type ProductStub struct {
	Code string
	Name string
	URL  string
}

// Category is one of a product's categories, derived from the page's
// breadcrumb chain. Chains run from broad ("Wine") to specific ("White wine").
type Category struct {
	Name string
	URL  string
}

// ExtractedProduct is everything pulled from one product page.
type ExtractedProduct struct {
	// DetailedInfo is the parsed metadata from the "Detailed Info" section.
	DetailedInfo DetailedInfo

	product    *LDProduct
	categories []Category
}

// NewExtractedProduct assembles an ExtractedProduct from already-decoded
// parts. Client.Product is the usual source; this exists for composing one
// directly.
func NewExtractedProduct(info DetailedInfo, product *LDProduct, categories []Category) *ExtractedProduct {
	return &ExtractedProduct{
		DetailedInfo: info,
		product:      product,
		categories:   categories,
	}
}

// Product returns the page's JSON-LD product entry.
func (e *ExtractedProduct) Product() (*LDProduct, error) {
	if e.product == nil {
		return nil, fmt.Errorf("missing product linked data")
	}
	return e.product, nil
}

// Categories returns the product's categories in breadcrumb order, broad to
// specific.
func (e *ExtractedProduct) Categories() []Category {
	return e.categories
}

// categoriesFromBreadcrumbs converts a page's breadcrumb list into Category
// entries in breadcrumb order. Breadcrumbs include the home page and the
// product itself; only entries under the catalog listing are categories.
func categoriesFromBreadcrumbs(breadcrumbs *breadcrumbList, listingPrefix string) []Category {
	var categories []Category
	for _, entry := range breadcrumbs.ItemListElement {
		if !strings.HasPrefix(entry.Item.ID, listingPrefix) {
			continue
		}
		categories = append(categories, Category{
			Name: entry.Item.Name,
			URL:  entry.Item.ID,
		})
	}
	return categories
}

// Client fetches catalog and product pages over HTTP.
// It is safe for concurrent use by multiple workers.
type Client struct {
	httpClient    *http.Client
	baseURL       *url.URL
	userAgent     string
	listingPrefix string
	logger        *zap.Logger
}

// NewClient builds a Client against the given catalog base URL.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       parsed,
		userAgent:     userAgent,
		listingPrefix: strings.TrimSuffix(parsed.String(), "/") + "/en/products/",
		logger:        logger,
	}, nil
}

// Page fetches one page of the product catalog under the default sorting
// (by availability) and returns the stubs listed on it in page order.
//
// The catalog's pagination wraps around rather than render an empty page,
// so the page echoes back which page number it actually rendered; when that
// differs from the requested number the catalog is exhausted and Page
// returns done=true with no stubs.
func (c *Client) Page(ctx context.Context, number int) (stubs []ProductStub, done bool, err error) {
	pageURL := c.baseURL.JoinPath("en", "products")
	query := pageURL.Query()
	query.Set("p", strconv.Itoa(number))
	pageURL.RawQuery = query.Encode()

	doc, err := c.fetchDocument(ctx, pageURL.String())
	if err != nil {
		return nil, false, err
	}

	currentText := doc.Find(currentPageSelector).First().Text()
	if currentText == "" {
		return nil, false, fmt.Errorf("could not find pagination on page")
	}
	current, err := strconv.Atoi(strings.TrimSpace(currentText))
	if err != nil {
		return nil, false, fmt.Errorf("convert page number %q to integer: %w", currentText, err)
	}
	if current != number {
		return nil, true, nil
	}

	ld, err := decodeLinkedData(ldPayloads(doc))
	if err != nil {
		return nil, false, err
	}
	if ld.catalog == nil {
		return nil, false, fmt.Errorf("missing offer catalog linked data")
	}

	products, err := ld.catalog.products()
	if err != nil {
		return nil, false, err
	}

	stubs = make([]ProductStub, 0, len(products))
	for _, p := range products {
		stubs = append(stubs, ProductStub{
			Code: p.SKU,
			Name: p.Name,
			URL:  p.Offers.URL,
		})
	}
	return stubs, false, nil
}

// Product fetches one product detail page and extracts its data.
func (c *Client) Product(ctx context.Context, stub ProductStub) (*ExtractedProduct, error) {
	doc, err := c.fetchDocument(ctx, stub.URL)
	if err != nil {
		return nil, err
	}

	ld, err := decodeLinkedData(ldPayloads(doc))
	if err != nil {
		return nil, err
	}

	if ld.product == nil {
		return nil, fmt.Errorf("missing product linked data on %s", stub.URL)
	}
	if ld.breadcrumbs == nil {
		return nil, fmt.Errorf("missing breadcrumb list linked data on %s", stub.URL)
	}

	info, err := ParseDetailedInfo(detailedInfoFields(doc))
	if err != nil {
		return nil, fmt.Errorf("extract detailed info from %s: %w", stub.URL, err)
	}

	return NewExtractedProduct(info, ld.product, categoriesFromBreadcrumbs(ld.breadcrumbs, c.listingPrefix)), nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	c.logger.Info("fetched page",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", pageURL, err)
	}
	return doc, nil
}

// ldPayloads returns the raw contents of every JSON-LD script tag on the page.
func ldPayloads(doc *goquery.Document) []string {
	var payloads []string
	doc.Find(ldScriptSelector).Each(func(_ int, s *goquery.Selection) {
		payloads = append(payloads, s.Text())
	})
	return payloads
}

// detailedInfoFields walks the detailed-info section into a flat key/value
// map, keyed by each element's data-th attribute.
func detailedInfoFields(doc *goquery.Document) map[string]string {
	fields := make(map[string]string)
	doc.Find(detailedInfoSelector).Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("data-th")
		if !ok {
			return
		}
		fields[key] = strings.TrimSpace(s.Text())
	})
	return fields
}
