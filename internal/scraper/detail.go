package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/observability"
	"golang.org/x/net/html"
)

// descriptionXPaths locate the posting description on a detail page, most specific first.
var descriptionXPaths = []string{
	`//div[contains(concat(' ', normalize-space(@class), ' '), ' description__text ')]`,
	`//div[contains(concat(' ', normalize-space(@class), ' '), ' show-more-less-html__markup ')]`,
}

// PageGetter returns the body of a successful GET. *httpx.PoliteClient satisfies it.
type PageGetter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

type PageEnricher struct {
	client PageGetter
}

func NewPageEnricher(client PageGetter) *PageEnricher {
	return &PageEnricher{client: client}
}

func (e *PageEnricher) Enrich(ctx context.Context, link string) model.Enrichment {
	observability.IncDetailPages()
	body, err := e.client.Get(ctx, link)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "scraper_detail")
		slog.Warn("detail page unavailable", "url", link, "error", err)
		return model.Enrichment{Miss: err.Error()}.Normalize()
	}

	text := Description(body)
	return model.Enrichment{
		Degree:     ExtractDegree(text),
		Experience: ExtractYears(text),
	}.Normalize()
}

// Description extracts the posting text of a detail page: the description container
// if present, then a JSON-LD JobPosting description. Other page text is ignored.
func Description(page []byte) string {
	doc, err := htmlquery.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	for _, xp := range descriptionXPaths {
		if n := htmlquery.FindOne(doc, xp); n != nil {
			if text := nodeText(n); text != "" {
				return text
			}
		}
	}

	for _, n := range htmlquery.Find(doc, `//script[@type='application/ld+json']`) {
		desc := jsonLDDescription(htmlquery.InnerText(n))
		if desc == "" {
			continue
		}
		// descriptions are often HTML-escaped markup
		frag, err := html.Parse(strings.NewReader(html.UnescapeString(desc)))
		if err != nil {
			return cleanText(desc)
		}
		if text := nodeText(frag); text != "" {
			return text
		}
	}
	return ""
}

// nodeText joins the text below n with single spaces, skipping scripts and styles.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return cleanText(strings.Join(parts, " "))
}
