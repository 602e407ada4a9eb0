package torrent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type TransmissionClient struct {
	host       string
	username   string
	password   string
	sessionID  string
	httpClient *http.Client
}

func NewTransmissionClient(host, username, password string, timeout time.Duration) *TransmissionClient {
	return &TransmissionClient{
		host:       host,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *TransmissionClient) Name() string {
	return "transmission"
}

// AddTorrentFile sends the metainfo base64-encoded; the category becomes a label.
func (t *TransmissionClient) AddTorrentFile(ctx context.Context, fileContent []byte, savePath, category string) error {
	args := map[string]interface{}{
		"metainfo":     base64.StdEncoding.EncodeToString(fileContent),
		"download-dir": savePath,
	}
	if category != "" {
		args["labels"] = []string{category}
	}

	response, err := t.sendRequest(ctx, "torrent-add", args, true)
	if err != nil {
		return err
	}

	if arguments, ok := response["arguments"].(map[string]interface{}); ok {
		if _, ok := arguments["torrent-added"]; ok {
			return nil
		}
		// Already present in the client counts as accepted.
		if _, ok := arguments["torrent-duplicate"]; ok {
			return nil
		}
	}
	return fmt.Errorf("transmission did not confirm the added torrent")
}

func (t *TransmissionClient) rpcURL() string {
	host := strings.TrimRight(t.host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/transmission/rpc"
}

func (t *TransmissionClient) sendRequest(ctx context.Context, method string, args interface{}, retrySession bool) (map[string]interface{}, error) {
	reqData := map[string]interface{}{
		"method":    method,
		"arguments": args,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.rpcURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if t.username != "" && t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	if t.sessionID != "" {
		req.Header.Set("X-Transmission-Session-Id", t.sessionID)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Handle session ID requirement
	if resp.StatusCode == http.StatusConflict && retrySession {
		t.sessionID = resp.Header.Get("X-Transmission-Session-Id")
		return t.sendRequest(ctx, method, args, false)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transmission request failed with status: %s", resp.Status)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if result, ok := response["result"].(string); !ok || result != "success" {
		return nil, fmt.Errorf("transmission request failed: %v", response["result"])
	}

	return response, nil
}
