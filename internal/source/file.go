package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/iliyamo/venue-directory/internal/ingest"
)

// FileFeed reads a feed from local disk. Operators use it for sources that
// are exported by a separate scraper job.
type FileFeed struct {
	name string
	kind ingest.SourceKind
	path string
}

func NewFileFeed(name string, kind ingest.SourceKind, path string) *FileFeed {
	return &FileFeed{name: name, kind: kind, path: path}
}

func (f *FileFeed) Name() string            { return f.name }
func (f *FileFeed) Kind() ingest.SourceKind { return f.kind }

func (f *FileFeed) Fetch(ctx context.Context) ([]ingest.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	body, err := io.ReadAll(io.LimitReader(fh, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("feed %s exceeds %d bytes", f.path, maxFeedBytes)
	}
	return decodeFeed(f.name, body)
}
