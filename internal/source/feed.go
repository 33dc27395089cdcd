// Package source holds the adapters that fetch external catalogs. Every
// upstream publishes a JSON feed of records already in the RawRecord shape,
// either as a bare array or wrapped as {"items": [...]}.
package source

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/iliyamo/venue-directory/internal/ingest"
)

// maxFeedBytes caps how much of one feed is read.
const maxFeedBytes = 32 << 20

var errEmptyFeed = errors.New("empty feed")

type envelope struct {
	Items []ingest.RawRecord `json:"items"`
}

// decodeFeed parses a feed body and stamps name on every record. The
// configured name is the source's identity; a feed's own source_name label
// is ignored.
func decodeFeed(name string, body []byte) ([]ingest.RawRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errEmptyFeed
	}
	var items []ingest.RawRecord
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		items = env.Items
	default:
		return nil, fmt.Errorf("decode feed: unexpected leading %q", body[0])
	}
	for i := range items {
		items[i].SourceName = name
	}
	return items, nil
}
