package torrent

import "context"

// Client accepts torrent files for download. Lifecycle after submission is
// the client's business.
type Client interface {
	AddTorrentFile(ctx context.Context, fileContent []byte, savePath, category string) error
	Name() string
}
