package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/bencode"
)

const (
	trackerPathPrefix = "tracker.php/"
	trackerPathSuffix = "/announce"
)

// AnnounceConfig describes the private tracker rewrite. Without a key the
// rewrite is disabled.
type AnnounceConfig struct {
	Generic      string
	Personalized string
}

// NewAnnounceConfig builds the generic and personalised tracker paths for key.
func NewAnnounceConfig(key string) AnnounceConfig {
	cfg := AnnounceConfig{Generic: trackerPathPrefix + trackerPathSuffix}
	if key = strings.TrimSpace(key); key != "" {
		cfg.Personalized = trackerPathPrefix + key + trackerPathSuffix
	}
	return cfg
}

// Enabled reports whether a personal key is configured.
func (c AnnounceConfig) Enabled() bool {
	return c.Personalized != ""
}

// NeedsRewrite reports whether payload carries the generic tracker path and a
// key is available to replace it.
func (c AnnounceConfig) NeedsRewrite(payload []byte) bool {
	return c.Enabled() && bytes.Contains(payload, []byte(c.Generic))
}

// RewriteAnnounce replaces the generic tracker path with the personalised one
// in the announce and announce-list entries of a bencoded torrent. Every other
// top-level value is re-emitted verbatim, so the info dict and its hash are
// untouched. Payloads that need no rewrite are returned as is.
func RewriteAnnounce(payload []byte, cfg AnnounceConfig) ([]byte, error) {
	if !cfg.NeedsRewrite(payload) {
		return payload, nil
	}

	var dict map[string]bencode.Bytes
	if err := bencode.Unmarshal(payload, &dict); err != nil {
		return nil, fmt.Errorf("decode torrent: %w", err)
	}

	changed := false

	if raw, ok := dict["announce"]; ok {
		var announce string
		if err := bencode.Unmarshal(raw, &announce); err != nil {
			return nil, fmt.Errorf("decode announce: %w", err)
		}
		if fixed := strings.ReplaceAll(announce, cfg.Generic, cfg.Personalized); fixed != announce {
			enc, err := bencode.Marshal(fixed)
			if err != nil {
				return nil, fmt.Errorf("encode announce: %w", err)
			}
			dict["announce"] = enc
			changed = true
		}
	}

	if raw, ok := dict["announce-list"]; ok {
		var tiers [][]string
		if err := bencode.Unmarshal(raw, &tiers); err != nil {
			return nil, fmt.Errorf("decode announce-list: %w", err)
		}
		tierChanged := false
		for i, tier := range tiers {
			for j, ann := range tier {
				if fixed := strings.ReplaceAll(ann, cfg.Generic, cfg.Personalized); fixed != ann {
					tiers[i][j] = fixed
					tierChanged = true
				}
			}
		}
		if tierChanged {
			enc, err := bencode.Marshal(tiers)
			if err != nil {
				return nil, fmt.Errorf("encode announce-list: %w", err)
			}
			dict["announce-list"] = enc
			changed = true
		}
	}

	if !changed {
		return payload, nil
	}
	out, err := bencode.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("encode torrent: %w", err)
	}
	return out, nil
}
