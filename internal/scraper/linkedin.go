package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/baxromumarov/job-collector/internal/httpx"
	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/observability"
	"github.com/baxromumarov/job-collector/internal/urlutil"
	"github.com/gocolly/colly/v2"
)

const (
	DefaultSearchURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	DefaultPerPage   = 25
)

var (
	errNotCard    = errors.New("not a job card")
	errIncomplete = errors.New("job card incomplete")
)

// LinkedInConfig describes the guest search endpoint and how fast it may be paged.
type LinkedInConfig struct {
	SearchURL    string
	PerPage      int
	RequestDelay time.Duration
}

// LinkedInFetcher pages through LinkedIn's unauthenticated job search.
type LinkedInFetcher struct {
	fetcher   *httpx.CollyFetcher
	searchURL *url.URL
	perPage   int
}

func NewLinkedInFetcher(fetcher *httpx.CollyFetcher, cfg LinkedInConfig) (*LinkedInFetcher, error) {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	u, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("search url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("search url %q: %w", cfg.SearchURL, urlutil.ErrNoHost)
	}
	if cfg.RequestDelay > 0 {
		fetcher.SetHostLimit(u.Hostname(), cfg.RequestDelay, 1)
	}
	return &LinkedInFetcher{
		fetcher:   fetcher,
		searchURL: u,
		perPage:   cfg.PerPage,
	}, nil
}

// Fetch collects up to maxCount distinct listings. A failed page aborts the whole
// fetch and no listings are returned.
func (f *LinkedInFetcher) Fetch(ctx context.Context, query, location string, maxCount int) (FetchResult, error) {
	var res FetchResult
	if maxCount <= 0 {
		return res, nil
	}

	seen := make(map[string]struct{})
	for start := 0; len(res.Listings) < maxCount; start += f.perPage {
		pageURL := f.pageURL(query, location, start)

		var (
			entries  []model.Listing
			failures int
		)
		err := f.fetcher.Fetch(ctx, pageURL, func(c *colly.Collector) {
			c.OnHTML("li", func(e *colly.HTMLElement) {
				listing, err := parseCard(e.DOM, f.searchURL)
				switch {
				case errors.Is(err, errNotCard):
				case err != nil:
					failures++
				default:
					entries = append(entries, listing)
				}
			})
		})
		if err != nil {
			observability.IncError(observability.ClassifyFetchError(err), "scraper_linkedin")
			slog.Error("search page failed", "url", pageURL, "start", start, "error", err)
			return FetchResult{}, err
		}
		observability.IncPagesFetched("linkedin")
		res.Pages++
		res.ParseFailures += failures

		if len(entries) == 0 {
			break
		}

		added := 0
		for _, l := range entries {
			key, err := urlutil.JobKey(l.Link)
			if err != nil {
				res.ParseFailures++
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			res.Listings = append(res.Listings, l)
			added++
			if len(res.Listings) >= maxCount {
				break
			}
		}
		slog.Debug("search page parsed", "start", start, "entries", len(entries), "new", added, "failures", failures)
		if added == 0 {
			break
		}
	}
	return res, nil
}

func (f *LinkedInFetcher) pageURL(query, location string, start int) string {
	u := *f.searchURL
	q := u.Query()
	q.Set("keywords", query)
	q.Set("location", location)
	q.Set("start", strconv.Itoa(start))
	u.RawQuery = q.Encode()
	return u.String()
}

// parseCard reads one search result. Elements without a card are errNotCard; cards
// missing a field are errIncomplete.
func parseCard(li *goquery.Selection, base *url.URL) (model.Listing, error) {
	card := li.Find("div.base-search-card").First()
	if card.Length() == 0 {
		card = li.Find("div.base-card").First()
	}
	if card.Length() == 0 {
		return model.Listing{}, errNotCard
	}

	title := card.Find("h3.base-search-card__title").First()
	if title.Length() == 0 {
		title = li.Find("h3").First()
	}
	anchor := card.Find("a.base-card__full-link").First()
	if anchor.Length() == 0 {
		anchor = li.Find("a[href]").First()
	}
	href, _ := anchor.Attr("href")

	listing := model.Listing{
		Link:     stripQuery(urlutil.Resolve(base, href)),
		Title:    cleanText(title.Text()),
		Company:  cleanText(card.Find("h4.base-search-card__subtitle").First().Text()),
		Location: cleanText(card.Find("span.job-search-card__location").First().Text()),
		PostedAt: postedAt(card.Find("time").First()),
	}
	if listing.Link == "" || listing.Title == "" || listing.Company == "" || listing.Location == "" {
		return model.Listing{}, errIncomplete
	}
	return listing, nil
}

func postedAt(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if dt, ok := sel.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return cleanText(sel.Text())
}

func stripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
