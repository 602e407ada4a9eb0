package feed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelfeed/internal/utils"

	"golang.org/x/net/html/charset"
)

// ErrUnreachable means the feed could not be fetched this run. Callers treat
// it as "nothing to do", not as a failure.
var ErrUnreachable = errors.New("feed unreachable")

// Entry is one release announced by the feed.
type Entry struct {
	Title     string
	Link      string
	Published time.Time
	Tags      []string
}

// PrimaryTag returns the first category of the entry, or "" when it has none.
func (e Entry) PrimaryTag() string {
	if len(e.Tags) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Tags[0])
}

// Source supplies feed entries, newest first.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// RSSItem mirrors the <item> structure in a standard RSS feed.
type RSSItem struct {
	Title      string   `xml:"title"`
	Link       string   `xml:"link"`
	GUID       string   `xml:"guid"`
	PubDate    string   `xml:"pubDate"`
	Categories []string `xml:"category"`
}

// RSSChannel mirrors the <channel> structure.
type RSSChannel struct {
	Items []RSSItem `xml:"item"`
}

// RSSFeed is the top-level structure for the XML document.
type RSSFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel RSSChannel `xml:"channel"`
}

// RSSClient implements Source for a single RSS URL.
type RSSClient struct {
	url        string
	httpClient *http.Client
	logger     *utils.Logger
}

func NewRSSClient(url string, timeout time.Duration, logger *utils.Logger) *RSSClient {
	return &RSSClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised pubDate %q", s)
}

// Fetch downloads and parses the feed. Transport failures and non-200
// responses are reported as ErrUnreachable.
func (r *RSSClient) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var rssFeed RSSFeed
	decoder := xml.NewDecoder(resp.Body)
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&rssFeed); err != nil {
		return nil, fmt.Errorf("failed to decode RSS feed: %w", err)
	}

	entries := make([]Entry, 0, len(rssFeed.Channel.Items))
	for _, item := range rssFeed.Channel.Items {
		published, err := parsePubDate(item.PubDate)
		if err != nil {
			// The entry can still be matched; its timestamp only drives pruning.
			r.logger.Warn("Using fetch time for", strings.TrimSpace(item.Title)+":", err)
			published = time.Now()
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = strings.TrimSpace(item.GUID)
		}
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      link,
			Published: published,
			Tags:      item.Categories,
		})
	}
	return entries, nil
}
