package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/maltedev/listing-scraper/internal/models"
)

// Selectors locate the product container and its sub-fields. Sub-field
// selectors are evaluated relative to the container.
type Selectors struct {
	Container   string
	Title       string
	Description string
	Price       string
	RatingIcon  string
	ReviewCount string
	Image       string
}

// DefaultSelectors match the webscraper.io e-commerce test site.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:   ".card-body",
		Title:       ".title",
		Description: ".description",
		Price:       ".price",
		RatingIcon:  ".ws-icon.ws-icon-star",
		ReviewCount: ".review-count",
		Image:       "img.img-fluid",
	}
}

type ListingParser struct {
	selectors Selectors
	logger    *slog.Logger
}

func NewListingParser(selectors Selectors, logger *slog.Logger) *ListingParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingParser{
		selectors: selectors,
		logger:    logger.With("component", "listing_parser"),
	}
}

// Extract parses a document snapshot and returns one Result per container in
// document order. A malformed container never stops the others.
func (p *ListingParser) Extract(html string) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.ExtractDocument(doc), nil
}

func (p *ListingParser) ExtractDocument(doc *goquery.Document) []Result {
	containers := doc.Find(p.selectors.Container)
	results := make([]Result, 0, containers.Length())

	containers.Each(func(i int, s *goquery.Selection) {
		record, err := p.ParseContainer(i, s)
		if err != nil {
			p.logger.Warn("dropping product container", "index", i, "error", err)
			results = append(results, Result{Index: i, Err: err})
			return
		}
		results = append(results, Result{Index: i, Record: record})
	})

	p.logger.Info("extracted listing",
		"containers", len(results),
		"selector", p.selectors.Container,
	)

	return results
}

// ParseContainer maps one product container to a record.
func (p *ListingParser) ParseContainer(index int, s *goquery.Selection) (*models.ProductRecord, error) {
	fail := func(field string, err error) (*models.ProductRecord, error) {
		return nil, &RecordExtractionError{Index: index, Field: field, Err: err}
	}

	titleEl := s.Find(p.selectors.Title).First()
	if titleEl.Length() == 0 {
		return fail("title", ErrMissingField)
	}
	title, _ := titleEl.Attr("title")
	title = strings.TrimSpace(title)
	if title == "" {
		return fail("title", fmt.Errorf("%w: empty title attribute", ErrMissingField))
	}

	descEl := s.Find(p.selectors.Description).First()
	if descEl.Length() == 0 {
		return fail("description", ErrMissingField)
	}

	priceEl := s.Find(p.selectors.Price).First()
	if priceEl.Length() == 0 {
		return fail("price", ErrMissingField)
	}
	price, err := ParsePrice(priceEl.Text())
	if err != nil {
		return fail("price", err)
	}

	imageEl := s.Find(p.selectors.Image).First()
	if imageEl.Length() == 0 {
		return fail("image", ErrMissingField)
	}
	src, ok := imageEl.Attr("src")
	if !ok {
		return fail("image", fmt.Errorf("%w: no src attribute", ErrMissingField))
	}

	reviews := 0
	if reviewEl := s.Find(p.selectors.ReviewCount).First(); reviewEl.Length() > 0 {
		reviews, err = ParseReviewCount(reviewEl.Text())
		if err != nil {
			return fail("reviewCount", err)
		}
	}

	return &models.ProductRecord{
		Title:       title,
		Description: strings.TrimSpace(descEl.Text()),
		Price:       price,
		StarRating:  s.Find(p.selectors.RatingIcon).Length(),
		ReviewCount: reviews,
		ImageRef:    src,
	}, nil
}

// plainDecimal rejects exponent forms such as "1e3", which would expand to
// arbitrarily many digits when formatted.
var plainDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ParsePrice strips the currency symbol, whitespace and thousands separators
// and parses the rest as an exact decimal: "$1,234.50" -> 1234.50.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	if !plainDecimal.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}

	return price, nil
}

// ParseReviewCount reads the leading integer of a label such as "12 reviews".
func ParseReviewCount(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty label", ErrInvalidReviewCount)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReviewCount, text)
	}

	return n, nil
}
