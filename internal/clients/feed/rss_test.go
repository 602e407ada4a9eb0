package feed

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelfeed/internal/utils"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>releases</title>
  <item>
    <title>РусНазвание (Show X) Episode (S02E05) [1080p]</title>
    <category>[1080p]</category>
    <pubDate>Tue, 13 Oct 2026 18:30:00 +0000</pubDate>
    <link>http://origin.test/dl/1.torrent</link>
  </item>
  <item>
    <title>Другое (Other Show) Pilot (S01E01) [SD]</title>
    <category>[SD]</category>
    <category>extra</category>
    <pubDate>Mon, 12 Oct 2026 10:00:00 GMT</pubDate>
    <link>http://origin.test/dl/2.torrent</link>
  </item>
</channel>
</rss>`

func TestRSSClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	entries, err := NewRSSClient(srv.URL, 5*time.Second, utils.NewNopLogger()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "РусНазвание (Show X) Episode (S02E05) [1080p]", entries[0].Title)
	assert.Equal(t, "http://origin.test/dl/1.torrent", entries[0].Link)
	assert.Equal(t, "[1080p]", entries[0].PrimaryTag())
	assert.Equal(t, int64(1791916200), entries[0].Published.Unix())

	assert.Equal(t, []string{"[SD]", "extra"}, entries[1].Tags)
	assert.Equal(t, 2026, entries[1].Published.Year())
}

func TestRSSClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRSSClient(srv.URL, time.Second, utils.NewNopLogger()).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)

	srv.Close()
	_, err = NewRSSClient(srv.URL, time.Second, utils.NewNopLogger()).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestPrimaryTagEmpty(t *testing.T) {
	assert.Equal(t, "", Entry{}.PrimaryTag())
}

func TestRSSClientWarnsOnBadPubDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss><channel><item>
  <title>Show X (S01E02)</title>
  <pubDate>sometime last week</pubDate>
  <link>http://origin.test/dl/3.torrent</link>
</item></channel></rss>`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	before := time.Now()
	entries, err := NewRSSClient(srv.URL, 5*time.Second, utils.NewLogger(false, &logs)).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.False(t, entries[0].Published.Before(before))
	assert.Contains(t, logs.String(), "Show X (S01E02)")
	assert.Contains(t, logs.String(), "sometime last week")
}
