package torrent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QBittorrentClient submits torrents through the qBittorrent Web API v2.
type QBittorrentClient struct {
	host       string
	username   string
	password   string
	httpClient *http.Client
}

func NewQBittorrentClient(host, username, password string, timeout time.Duration) *QBittorrentClient {
	return &QBittorrentClient{
		host:       strings.TrimRight(host, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (q *QBittorrentClient) Name() string {
	return "qbittorrent"
}

// login authenticates with the qBittorrent Web API and gets a session cookie.
func (q *QBittorrentClient) login(ctx context.Context) (*http.Cookie, error) {
	loginURL := fmt.Sprintf("%s/api/v2/auth/login", q.host)
	data := url.Values{}
	data.Set("username", q.username)
	data.Set("password", q.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	// qBittorrent rejects logins whose Referer does not match the host.
	req.Header.Add("Referer", q.host)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent login failed with status: %s", resp.Status)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			return cookie, nil
		}
	}
	return nil, fmt.Errorf("SID cookie not found after login")
}

// AddTorrentFile uploads the torrent as multipart form data.
func (q *QBittorrentClient) AddTorrentFile(ctx context.Context, fileContent []byte, savePath, category string) error {
	cookie, err := q.login(ctx)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("torrents", "release.torrent")
	if err != nil {
		return err
	}
	if _, err := part.Write(fileContent); err != nil {
		return err
	}
	if err := form.WriteField("savepath", savePath); err != nil {
		return err
	}
	if category != "" {
		if err := form.WriteField("category", category); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return err
	}

	addURL := fmt.Sprintf("%s/api/v2/torrents/add", q.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addURL, &body)
	if err != nil {
		return err
	}
	req.AddCookie(cookie)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to add torrent with status: %s", resp.Status)
	}
	// The API answers 200 "Fails." when it refuses the file.
	if strings.TrimSpace(string(reply)) == "Fails." {
		return fmt.Errorf("qbittorrent refused the torrent")
	}
	return nil
}
