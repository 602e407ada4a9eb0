package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"

	"reelfeed/internal/utils"
)

// ErrPayloadNotReady is returned once the retry budget is spent without the
// origin serving a torrent with a usable tracker announce.
var ErrPayloadNotReady = errors.New("torrent payload never became valid")

const userAgent = "Mozilla/5.0"

// RetryPolicy bounds how often and how patiently a torrent is re-fetched.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Sleep waits between attempts; nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy polls for up to five minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 30, Delay: 10 * time.Second}
}

func (p RetryPolicy) wait(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher downloads torrent files from the release origin.
type Fetcher struct {
	cookie     string
	announce   utils.AnnounceConfig
	policy     RetryPolicy
	httpClient *http.Client
	logger     *utils.Logger
}

func NewFetcher(cookie string, announce utils.AnnounceConfig, policy RetryPolicy, logger *utils.Logger) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Fetcher{
		cookie:   cookie,
		announce: announce,
		policy:   policy,
		// The default client follows redirects and has no overall timeout.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Fetch downloads the torrent behind link, polling until the payload carries a
// tracker announce, then applies the announce rewrite if a key is configured.
func (f *Fetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.policy.wait(ctx); err != nil {
				return nil, err
			}
		}

		payload, err := f.download(ctx, link)
		if err == nil {
			_, err = AnnouncePath(payload)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			f.logger.Warn(fmt.Sprintf("Torrent not ready (attempt %d/%d): %v", attempt, f.policy.MaxAttempts, err))
			continue
		}

		if f.announce.NeedsRewrite(payload) {
			f.logger.Debug("Rewriting generic tracker announce for", link)
			return utils.RewriteAnnounce(payload, f.announce)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrPayloadNotReady, f.policy.MaxAttempts, lastErr)
}

func (f *Fetcher) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", f.cookie)
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("origin answered %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// AnnouncePath returns the URL path of the first tracker announced by a
// bencoded torrent. Placeholders served before the real file is provisioned
// fail to decode or carry no usable announce.
func AnnouncePath(payload []byte) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("not a torrent: %w", err)
	}

	candidates := []string{mi.Announce}
	for _, tier := range mi.AnnounceList {
		candidates = append(candidates, tier...)
	}
	for _, raw := range candidates {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			continue
		}
		if p := strings.Trim(u.Path, "/"); p != "" {
			return u.Path, nil
		}
	}
	return "", errors.New("torrent has no tracker announce")
}
