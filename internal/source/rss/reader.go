// Package rss reads candidate items from RSS/Atom feeds.
package rss

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/newsdigest/digest-pipeline/internal/digest"
	"github.com/newsdigest/digest-pipeline/internal/source"
	"github.com/sirupsen/logrus"
)

const fetchTimeout = 20 * time.Second

// Some publishers serve bot-hostile defaults; a browser-like header set gets
// past most of them.
var fetchHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Accept":          "application/xml,application/rss+xml,text/xml;q=0.9,text/html;q=0.8,*/*;q=0.5",
	"Accept-Language": "en-US,en;q=0.9,ko;q=0.8",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// Feed describes one configured feed endpoint.
type Feed struct {
	Name     string
	URL      string
	Category string
}

// Reader fetches a feed over HTTP and parses it leniently: a broken item
// skips that item only, and any fetch-level problem fails the whole feed
// with an error the pipeline downgrades to "zero candidates".
type Reader struct {
	feed   Feed
	client *resty.Client
	log    *logrus.Entry
	now    func() time.Time
}

var _ source.Reader = (*Reader)(nil)

func New(feed Feed, log *logrus.Entry) *Reader {
	client := resty.New().
		SetTimeout(fetchTimeout).
		SetHeaders(fetchHeaders)
	return &Reader{feed: feed, client: client, log: log, now: time.Now}
}

func (r *Reader) Name() string {
	return r.feed.Name
}

func (r *Reader) Read(ctx context.Context) ([]digest.Candidate, error) {
	resp, err := r.client.R().SetContext(ctx).Get(r.feed.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.feed.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: HTTP %s", r.feed.URL, resp.Status())
	}

	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if !strings.Contains(contentType, "xml") && !strings.Contains(contentType, "rss") {
		return nil, fmt.Errorf("fetch %s: not a feed response (Content-Type %q)", r.feed.URL, contentType)
	}

	parsed, err := gofeed.NewParser().ParseString(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.feed.URL, err)
	}

	candidates := make([]digest.Candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			r.log.WithField("title", item.Title).Warn("feed item without link, skipping")
			continue
		}

		title := stripHTML(item.Title)
		if title == "" {
			continue
		}

		rawBody := item.Description
		if rawBody == "" {
			rawBody = item.Content
		}
		body := stripHTML(rawBody)
		if body == "" {
			body = title
		}

		published := digest.DateOf(r.now())
		if item.PublishedParsed != nil {
			published = digest.DateOf(*item.PublishedParsed)
		} else if item.UpdatedParsed != nil {
			published = digest.DateOf(*item.UpdatedParsed)
		}

		candidates = append(candidates, digest.Candidate{
			URL:         link,
			Title:       title,
			Body:        body,
			Source:      r.feed.Name,
			Category:    r.feed.Category,
			PublishedAt: published,
			MediaURL:    mediaURL(item, link, rawBody),
		})
	}
	return candidates, nil
}

// mediaURL picks an auxiliary image: the feed-level item image, then an
// image enclosure, then the first <img> inside the raw description, resolved
// against the item link.
func mediaURL(item *gofeed.Item, link, rawDescription string) string {
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return strings.TrimSpace(item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") && strings.TrimSpace(enc.URL) != "" {
			return strings.TrimSpace(enc.URL)
		}
	}
	if rawDescription == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawDescription))
	if err != nil {
		return ""
	}
	src, ok := doc.Find("img").First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return ""
	}
	return absoluteURL(link, strings.TrimSpace(src))
}

func absoluteURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// stripHTML flattens markup to trimmed text; feed titles and descriptions
// routinely embed tags.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
