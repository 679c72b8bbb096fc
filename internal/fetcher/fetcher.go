// Package fetcher reads tabular inputs (competitor, branch and sales sheets) from
// HTTP(S), FTP or local CSV and XLSX files.
package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// MaxSheetBytes caps a downloaded sheet.
const MaxSheetBytes = 64 << 20

// Fetcher downloads a remote sheet.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ConditionalFetcher can skip a download when the remote ETag is unchanged.
type ConditionalFetcher interface {
	Fetcher

	// FetchIfChanged sends etag as If-None-Match. When the sheet is unchanged
	// it returns a nil body, the same etag and changed=false.
	FetchIfChanged(ctx context.Context, url, etag string) (body []byte, newETag string, changed bool, err error)
}

// SourceCache persists the last body and ETag seen for a remote sheet.
type SourceCache interface {
	GetSource(ctx context.Context, url string) (etag string, body []byte, ok bool, err error)
	PutSource(ctx context.Context, url, etag string, body []byte) error
}

// readBody reads at most MaxSheetBytes from r.
func readBody(r io.Reader, src string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSheetBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "read body %s", src)
	}
	if len(data) > MaxSheetBytes {
		return nil, eris.Errorf("%s is larger than %d bytes", src, MaxSheetBytes)
	}
	return data, nil
}
