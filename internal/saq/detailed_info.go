package saq

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DetailedInfo holds the parsed key/value metadata from the "Detailed Info"
// section of a product page. Every field except the SAQ code is optional.
type DetailedInfo struct {
	// SAQCode is the SAQ's unique identifier for the product.
	SAQCode string
	// Producer is who makes the product (i.e. "The Absolut Company").
	Producer *string
	// PromotingAgent is the product's importer (i.e. "La QV Inc. (GB)").
	PromotingAgent *string
	// ABVPercentage is the alcohol by volume percentage.
	ABVPercentage *float64
	// Size is the container count and per-container volume.
	Size *Size
	// Color applies to any product type, so some values read oddly for spirits.
	Color *string
	// Region is where the product was produced (i.e. "Jura").
	Region *string
	// UPCCode is the product's UPC code.
	UPCCode *string
	// Country is where the product was produced.
	Country *string
	// QuebecDesignation is the specific "Product of Québec" labelling.
	QuebecDesignation *QuebecDesignation
	// GrapeVarieties lists the grapes in the product. The percentages don't
	// always add up to 100, and trailing entries may omit theirs.
	GrapeVarieties []GrapeVariety
	// SugarContent is the sugar measurement with its comparison qualifier.
	SugarContent *SugarContent
	// RegulatedDesignation names a regulated label such as
	// "Appellation origine controlée (AOC)".
	RegulatedDesignation *string
	// DesignationOfOrigin is the designated origin (i.e. "Arbois").
	DesignationOfOrigin *string
	// Classification is the product's classification (i.e. "Gran reserva").
	Classification *string
	// SpecialFeatures lists tags such as "Organic product".
	SpecialFeatures []string
}

// Size is the product's packaging: how many containers and how much each holds.
type Size struct {
	ContainerCount       int
	ContainerMilliliters int
}

// SugarContent is the product's sugar measurement in grams per liter.
// The catalog marks imprecise measurements with a < or > prefix.
type SugarContent struct {
	GramsPerLiter float64
	Qualifier     SugarQualifier
}

// SugarQualifier says whether the actual sugar quantity is greater than,
// less than, or equal to the reported value.
type SugarQualifier int

// The sugar comparison qualifiers.
const (
	SugarGreaterThan SugarQualifier = iota + 1
	SugarLessThan
	SugarEqual
)

var sugarQualifierWire = map[SugarQualifier]string{
	SugarGreaterThan: ">",
	SugarLessThan:    "<",
	SugarEqual:       "=",
}

// Wire returns the canonical database string for the qualifier.
func (q SugarQualifier) Wire() (string, error) {
	s, ok := sugarQualifierWire[q]
	if !ok {
		return "", fmt.Errorf("invalid sugar qualifier %d", q)
	}
	return s, nil
}

// GrapeVariety is one grape in the product's composition, with the share of
// it present when the catalog reports one.
type GrapeVariety struct {
	Name       string
	Percentage *int
}

// QuebecDesignation is the specifics of the "Product of Québec" label.
type QuebecDesignation int

// The "Product of Québec" labels, from least to most local.
const (
	// QuebecBottledIn means the final product was bottled in Québec.
	QuebecBottledIn QuebecDesignation = iota + 1
	// QuebecMadeIn means the product was made in Québec, partially or fully
	// from ingredients sourced outside of Québec.
	QuebecMadeIn
	// QuebecOrigine means the product was made in Québec using ingredients
	// from Québec.
	QuebecOrigine
)

var quebecDesignationWire = map[QuebecDesignation]string{
	QuebecBottledIn: "bottled_in_quebec",
	QuebecMadeIn:    "made_in_quebec",
	QuebecOrigine:   "origine_quebec",
}

// Wire returns the canonical database string for the designation.
func (d QuebecDesignation) Wire() (string, error) {
	s, ok := quebecDesignationWire[d]
	if !ok {
		return "", fmt.Errorf("invalid quebec designation %d", d)
	}
	return s, nil
}

// ParseDetailedInfo converts the flat key/value map scraped from a product
// page's detailed-info section into a DetailedInfo, parsing the structured
// fields along the way. The SAQ code is the only required entry.
func ParseDetailedInfo(fields map[string]string) (DetailedInfo, error) {
	info := DetailedInfo{
		Producer:             optional(fields, "Producer"),
		PromotingAgent:       optional(fields, "Promoting agent"),
		Color:                optional(fields, "Color"),
		Region:               optional(fields, "Region"),
		UPCCode:              optional(fields, "UPC code"),
		Country:              optional(fields, "Country"),
		RegulatedDesignation: optional(fields, "Regulated Designation"),
		DesignationOfOrigin:  optional(fields, "Designation of origin"),
		Classification:       optional(fields, "Classification"),
	}

	code, ok := fields["SAQ code"]
	if !ok {
		return DetailedInfo{}, fmt.Errorf("SAQ code not found")
	}
	info.SAQCode = code

	if text, ok := fields["Degree of alcohol"]; ok {
		abv, err := parseABV(text)
		if err != nil {
			return DetailedInfo{}, err
		}
		info.ABVPercentage = &abv
	}

	if text, ok := fields["Size"]; ok {
		size, err := parseSize(text)
		if err != nil {
			return DetailedInfo{}, err
		}
		info.Size = &size
	}

	if text, ok := fields["Product of Québec"]; ok {
		designation, err := parseQuebecDesignation(text)
		if err != nil {
			return DetailedInfo{}, err
		}
		info.QuebecDesignation = &designation
	}

	if text, ok := fields["Grape variety"]; ok {
		varieties, err := parseGrapeVarieties(text)
		if err != nil {
			return DetailedInfo{}, err
		}
		info.GrapeVarieties = varieties
	}

	if text, ok := fields["Sugar content"]; ok {
		sugar, err := parseSugarContent(text)
		if err != nil {
			return DetailedInfo{}, err
		}
		info.SugarContent = &sugar
	}

	if text, ok := fields["Special feature"]; ok {
		info.SpecialFeatures = strings.Split(text, ", ")
	}

	return info, nil
}

func optional(fields map[string]string, key string) *string {
	value, ok := fields[key]
	if !ok {
		return nil
	}
	return &value
}

var abvRe = regexp.MustCompile(`^(\d+(\.\d+)?) %$`)

// parseABV converts an alcohol-by-volume string such as "12.5 %" into a float.
func parseABV(text string) (float64, error) {
	m := abvRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("failed to match abv %q", text)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse abv %q: %w", m[1], err)
	}
	return value, nil
}

// The space before the unit is optional; the catalog writes both
// "6 x 200 ml" and "6 x 200ml".
var sizeRe = regexp.MustCompile(`^((\d+) x )?(\d+(\.\d+)?) ?(mL|ml|L)$`)

// parseSize converts a size string such as "6 x 200ml" or "2.25 L" into a
// Size. A missing count means one container; liters are converted to
// milliliters and fractional milliliters round up.
func parseSize(text string) (Size, error) {
	m := sizeRe.FindStringSubmatch(text)
	if m == nil {
		return Size{}, fmt.Errorf("failed to match size %q", text)
	}

	count := 1
	if m[2] != "" {
		parsed, err := strconv.Atoi(m[2])
		if err != nil {
			return Size{}, fmt.Errorf("parse container count %q: %w", m[2], err)
		}
		count = parsed
	}

	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Size{}, fmt.Errorf("parse container volume %q: %w", m[3], err)
	}

	var milliliters int
	switch m[5] {
	case "mL", "ml":
		milliliters = int(math.Ceil(value))
	case "L":
		milliliters = int(math.Ceil(value * 1000))
	}

	return Size{ContainerCount: count, ContainerMilliliters: milliliters}, nil
}

var sugarContentRe = regexp.MustCompile(`^(<|>)?(\d+(\.\d+)?) g/L$`)

// parseSugarContent converts a sugar string such as "<1.2 g/L" into a
// SugarContent. No prefix means an exact measurement.
func parseSugarContent(text string) (SugarContent, error) {
	m := sugarContentRe.FindStringSubmatch(text)
	if m == nil {
		return SugarContent{}, fmt.Errorf("failed to match sugar content %q", text)
	}

	qualifier := SugarEqual
	switch m[1] {
	case ">":
		qualifier = SugarGreaterThan
	case "<":
		qualifier = SugarLessThan
	}

	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return SugarContent{}, fmt.Errorf("parse sugar content %q: %w", m[2], err)
	}

	return SugarContent{GramsPerLiter: value, Qualifier: qualifier}, nil
}

// The catalog separates grape percentages with non-breaking spaces as often
// as regular ones.
var grapePercentRe = regexp.MustCompile(`([\s\x{00A0}](\d+)[\s\x{00A0}]%)$`)

// parseGrapeVarieties converts a comma-separated grape list such as
// "Zinfandel 95 %, Other grape variety (ies) 5 %" into GrapeVariety entries.
// Entries without a trailing percentage keep a nil Percentage.
func parseGrapeVarieties(text string) ([]GrapeVariety, error) {
	var varieties []GrapeVariety

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)

		name := part
		var percentage *int

		if m := grapePercentRe.FindStringSubmatchIndex(part); m != nil {
			value, err := strconv.Atoi(part[m[4]:m[5]])
			if err != nil {
				return nil, fmt.Errorf("parse grape percentage in %q: %w", part, err)
			}
			percentage = &value
			name = strings.TrimSpace(part[:m[2]])
		}

		if name == "" {
			return nil, fmt.Errorf("could not detect grape name in %q", part)
		}

		varieties = append(varieties, GrapeVariety{Name: name, Percentage: percentage})
	}

	return varieties, nil
}

// parseQuebecDesignation maps the three fixed label strings to their variants.
func parseQuebecDesignation(text string) (QuebecDesignation, error) {
	switch text {
	case "Bottled in Québec":
		return QuebecBottledIn, nil
	case "Made in Québec":
		return QuebecMadeIn, nil
	case "Origine Québec":
		return QuebecOrigine, nil
	default:
		return 0, fmt.Errorf("%q is not a valid Product of Québec value", text)
	}
}
