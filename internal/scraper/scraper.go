package scraper

import (
	"context"

	"github.com/baxromumarov/job-collector/internal/model"
)

type FetchResult struct {
	Listings      []model.Listing
	ParseFailures int
	Pages         int
}

// ListingFetcher retrieves listings from a search source. Failed retrievals are
// reported as *httpx.FetchError with no partial results.
type ListingFetcher interface {
	Fetch(ctx context.Context, query, location string, maxCount int) (FetchResult, error)
}

// DetailEnricher reads a listing's detail page. It never fails: unreadable pages
// yield sentinel values with Miss set.
type DetailEnricher interface {
	Enrich(ctx context.Context, link string) model.Enrichment
}
