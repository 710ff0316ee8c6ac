package saq

import (
	"encoding/json"
	"fmt"
)

// Availability mirrors the closed set of schema.org ItemAvailability values
// the catalog publishes. The zero value is invalid; unknown wire values are
// rejected while decoding rather than passed through.
type Availability int

// The schema.org ItemAvailability variants.
const (
	AvailabilityBackOrder Availability = iota + 1
	AvailabilityDiscontinued
	AvailabilityInStock
	AvailabilityInStoreOnly
	AvailabilityLimitedAvailability
	AvailabilityOnlineOnly
	AvailabilityOutOfStock
	AvailabilityPreOrder
	AvailabilityPreSale
	AvailabilitySoldOut
)

var availabilityBySchema = map[string]Availability{
	"http://schema.org/BackOrder":           AvailabilityBackOrder,
	"http://schema.org/Discontinued":        AvailabilityDiscontinued,
	"http://schema.org/InStock":             AvailabilityInStock,
	"http://schema.org/InStoreOnly":         AvailabilityInStoreOnly,
	"http://schema.org/LimitedAvailability": AvailabilityLimitedAvailability,
	"http://schema.org/OnlineOnly":          AvailabilityOnlineOnly,
	"http://schema.org/OutOfStock":          AvailabilityOutOfStock,
	"http://schema.org/PreOrder":            AvailabilityPreOrder,
	"http://schema.org/PreSale":             AvailabilityPreSale,
	"http://schema.org/SoldOut":             AvailabilitySoldOut,
}

var availabilityWire = map[Availability]string{
	AvailabilityBackOrder:           "back_order",
	AvailabilityDiscontinued:        "discontinued",
	AvailabilityInStock:             "in_stock",
	AvailabilityInStoreOnly:         "in_store_only",
	AvailabilityLimitedAvailability: "limited_availability",
	AvailabilityOnlineOnly:          "online_only",
	AvailabilityOutOfStock:          "out_of_stock",
	AvailabilityPreOrder:            "pre_order",
	AvailabilityPreSale:             "pre_sale",
	AvailabilitySoldOut:             "sold_out",
}

// UnmarshalJSON decodes the schema.org URL form, rejecting unknown values.
func (a *Availability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode availability: %w", err)
	}
	v, ok := availabilityBySchema[s]
	if !ok {
		return fmt.Errorf("unknown availability %q", s)
	}
	*a = v
	return nil
}

// Wire returns the canonical database string for the availability.
// The store schema CHECK-constrains the column to exactly these values.
func (a Availability) Wire() (string, error) {
	s, ok := availabilityWire[a]
	if !ok {
		return "", fmt.Errorf("invalid availability %d", a)
	}
	return s, nil
}

// ItemCondition mirrors schema.org OfferItemCondition. The zero value is
// invalid; unknown wire values are rejected while decoding.
type ItemCondition int

// The schema.org OfferItemCondition variants.
const (
	ConditionDamaged ItemCondition = iota + 1
	ConditionNew
	ConditionRefurbished
	ConditionUsed
)

var conditionBySchema = map[string]ItemCondition{
	"DamagedCondition":     ConditionDamaged,
	"NewCondition":         ConditionNew,
	"RefurbishedCondition": ConditionRefurbished,
	"UsedCondition":        ConditionUsed,
}

var conditionWire = map[ItemCondition]string{
	ConditionDamaged:     "damaged",
	ConditionNew:         "new",
	ConditionRefurbished: "refurbished",
	ConditionUsed:        "used",
}

// UnmarshalJSON decodes the schema.org condition name, rejecting unknown values.
func (c *ItemCondition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode item condition: %w", err)
	}
	v, ok := conditionBySchema[s]
	if !ok {
		return fmt.Errorf("unknown item condition %q", s)
	}
	*c = v
	return nil
}

// Wire returns the canonical database string for the condition.
func (c ItemCondition) Wire() (string, error) {
	s, ok := conditionWire[c]
	if !ok {
		return "", fmt.Errorf("invalid item condition %d", c)
	}
	return s, nil
}

// LDProduct is the subset of the schema.org Product JSON-LD entry the
// crawler consumes. Its sku is the same identifier as the SAQ code from the
// detailed-info section.
type LDProduct struct {
	Description string `json:"description"`
	Image       string `json:"image"`
	Name        string `json:"name"`
	Offers      Offer  `json:"offers"`
	SKU         string `json:"sku"`
}

// Offer is the schema.org Offer nested inside a product entry. Its url is
// the product detail page.
type Offer struct {
	Availability  Availability  `json:"availability"`
	ItemCondition ItemCondition `json:"itemCondition"`
	Price         float64       `json:"price"`
	PriceCurrency string        `json:"priceCurrency"`
	URL           string        `json:"url"`
}

type breadcrumbList struct {
	ItemListElement []breadcrumbEntry `json:"itemListElement"`
}

type breadcrumbEntry struct {
	Item     breadcrumbItem `json:"item"`
	Position int            `json:"position"`
}

type breadcrumbItem struct {
	ID   string `json:"@id"`
	Name string `json:"name"`
}

type webPage struct {
	MainEntity json.RawMessage `json:"mainEntity"`
}

type offerCatalog struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	NumberOfItems   int               `json:"numberOfItems"`
	ItemListElement []json.RawMessage `json:"itemListElement"`
}

// products filters the catalog's item list down to its product entries.
func (c *offerCatalog) products() ([]LDProduct, error) {
	var out []LDProduct
	for _, raw := range c.ItemListElement {
		typ, err := ldType(raw)
		if err != nil {
			return nil, err
		}
		if typ != "Product" {
			continue
		}
		var p LDProduct
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode catalog product: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// linkedData collects the JSON-LD entries of interest from one page. Pages
// carry several <script> blocks; anything other than these three kinds is
// ignored.
type linkedData struct {
	product     *LDProduct
	breadcrumbs *breadcrumbList
	catalog     *offerCatalog
}

func ldType(raw json.RawMessage) (string, error) {
	var envelope struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decode linked data envelope: %w", err)
	}
	return envelope.Type, nil
}

// decodeLinkedData parses the contents of every JSON-LD script tag found on
// a page into a linkedData aggregate.
func decodeLinkedData(payloads []string) (*linkedData, error) {
	ld := &linkedData{}
	for _, payload := range payloads {
		raw := json.RawMessage(payload)
		typ, err := ldType(raw)
		if err != nil {
			return nil, err
		}
		switch typ {
		case "Product":
			var p LDProduct
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode product linked data: %w", err)
			}
			ld.product = &p
		case "BreadcrumbList":
			var b breadcrumbList
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("decode breadcrumb linked data: %w", err)
			}
			ld.breadcrumbs = &b
		case "WebPage":
			var w webPage
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, fmt.Errorf("decode web page linked data: %w", err)
			}
			if len(w.MainEntity) == 0 {
				continue
			}
			entityType, err := ldType(w.MainEntity)
			if err != nil {
				return nil, err
			}
			if entityType != "OfferCatalog" {
				continue
			}
			var c offerCatalog
			if err := json.Unmarshal(w.MainEntity, &c); err != nil {
				return nil, fmt.Errorf("decode offer catalog: %w", err)
			}
			ld.catalog = &c
		}
	}
	return ld, nil
}
