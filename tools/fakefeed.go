//go:build ignore

// fakefeed serves a release feed and a tracker download endpoint for local
// testing. Each torrent link answers with an HTML placeholder a few times
// before the real file becomes available.
//
//	go run tools/fakefeed.go -addr :8080 -delay 3
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/gorilla/mux"
)

var releases = []string{
	"Рус (Show X) Ep (S01E03) [1080p]",
	"Рус (Show X) Ep (S01E03) [SD]",
	"Рус (Another Show) Pilot (S02E01) [1080p]",
	"Рус (Show X) Ep (S01E02) [1080p]",
	"Фильм (Some Movie). Версия (Фильм) [1080p]",
	"Рус (Show X) E999 (S01E04) [1080p]",
}

type origin struct {
	addr  string
	delay int

	mu   sync.Mutex
	hits map[int]int
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	delay := flag.Int("delay", 3, "placeholder responses before each torrent is ready")
	flag.Parse()

	o := &origin{addr: *addr, delay: *delay, hits: make(map[int]int)}

	router := mux.NewRouter()
	router.HandleFunc("/rssdd.xml", o.feed).Methods("GET")
	router.HandleFunc("/td.php", o.torrent).Methods("GET")

	fmt.Println("Fake feed origin starting on", *addr)
	log.Fatal(http.ListenAndServe(*addr, router))
}

func (o *origin) feed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><rss version="2.0"><channel><title>fake</title>`)
	now := time.Now()
	for i, title := range releases {
		published := now.Add(-time.Duration(i) * time.Hour).Format(time.RFC1123Z)
		quality := "[1080p]"
		if i == 1 {
			quality = "[SD]"
		}
		fmt.Fprintf(w, `<item><title>%s</title><category>%s</category><link>http://%s/td.php?s=%d</link><pubDate>%s</pubDate></item>`,
			title, quality, r.Host, i, published)
	}
	fmt.Fprint(w, `</channel></rss>`)
}

func (o *origin) torrent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("s"))
	if err != nil || id < 0 || id >= len(releases) {
		http.NotFound(w, r)
		return
	}
	log.Printf("torrent %d requested, cookie %q", id, r.Header.Get("Cookie"))

	o.mu.Lock()
	o.hits[id]++
	hits := o.hits[id]
	o.mu.Unlock()

	if hits <= o.delay {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Torrent is being prepared</body></html>")
		return
	}

	info := metainfo.Info{
		Name:        releases[id],
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Length:      16384,
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mi := metainfo.MetaInfo{
		Announce:     "http://bt.tracker.test/tracker.php//announce",
		AnnounceList: metainfo.AnnounceList{{"http://bt.tracker.test/tracker.php//announce"}},
		InfoBytes:    infoBytes,
	}
	w.Header().Set("Content-Type", "application/x-bittorrent")
	if err := mi.Write(w); err != nil {
		log.Printf("write torrent %d: %v", id, err)
	}
}
