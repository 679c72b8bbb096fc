package fetcher

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Table is a header row plus data rows read from a sheet.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, matched case-insensitively
// after trimming, or -1.
func (t *Table) Index(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Missing returns the names that do not resolve to a column.
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if t.Index(n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

// Cell returns the trimmed value at row r, column c; short rows yield "".
func (t *Table) Cell(r, c int) string {
	if c < 0 || r < 0 || r >= len(t.Rows) || c >= len(t.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[r][c])
}

// TableOptions selects how a source is parsed.
type TableOptions struct {
	Sheet string // xlsx sheet name; first sheet when empty
}

// Reader opens CSV and XLSX sources from http(s), ftp, or the local filesystem.
type Reader struct {
	HTTP  ConditionalFetcher
	FTP   Fetcher
	Cache SourceCache // optional; remote bodies keyed by URL with their ETag
}

// NewReader returns a Reader with default HTTP and FTP fetchers.
func NewReader(httpOpts HTTPOptions, cache SourceCache) *Reader {
	return &Reader{
		HTTP:  NewHTTPFetcher(httpOpts),
		FTP:   NewFTPFetcher(httpOpts.Timeout),
		Cache: cache,
	}
}

// ReadTable reads src into a Table. The first row is the header. The format
// is chosen from the path extension or a format/output query parameter;
// anything that is not xlsx is parsed as CSV.
func (r *Reader) ReadTable(ctx context.Context, src string, opts TableOptions) (*Table, error) {
	data, err := r.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if isXLSX(src) {
		rows, err = ReadXLSX(data, opts.Sheet)
	} else {
		rows, err = ReadCSV(ctx, bytes.NewReader(data), CSVOptions{})
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", src)
	}
	return splitHeader(rows), nil
}

func (r *Reader) fetch(ctx context.Context, src string) ([]byte, error) {
	switch scheme(src) {
	case "http", "https":
		if r.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", src)
		}
		return r.fetchHTTP(ctx, src)
	case "ftp":
		if r.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", src)
		}
		data, err := r.FTP.Fetch(ctx, src)
		return data, eris.Wrapf(err, "fetcher: ftp %s", src)
	default:
		p := strings.TrimPrefix(src, "file://")
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", p)
		}
		return data, nil
	}
}

// fetchHTTP revalidates a cached body by ETag and stores new versions.
func (r *Reader) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("source", src))

	var (
		etag   string
		cached []byte
	)
	if r.Cache != nil {
		e, body, ok, err := r.Cache.GetSource(ctx, src)
		switch {
		case err != nil:
			log.Warn("source cache lookup failed", zap.Error(err))
		case ok:
			etag, cached = e, body
		}
	}

	data, newETag, changed, err := r.HTTP.FetchIfChanged(ctx, src, etag)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", src)
	}
	if !changed {
		log.Debug("source unchanged, using cached body", zap.String("etag", etag))
		return cached, nil
	}

	if r.Cache != nil && newETag != "" {
		if err := r.Cache.PutSource(ctx, src, newETag, data); err != nil {
			log.Warn("source cache store failed", zap.Error(err))
		}
	}
	log.Debug("source downloaded", zap.Int("bytes", len(data)), zap.String("etag", newETag))
	return data, nil
}

func splitHeader(rows [][]string) *Table {
	t := &Table{}
	if len(rows) == 0 {
		return t
	}
	t.Header = rows[0]
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func scheme(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func isXLSX(src string) bool {
	u, err := url.Parse(src)
	if err == nil && u.Scheme != "" && u.Scheme != "file" {
		q := u.Query()
		if strings.EqualFold(q.Get("format"), "xlsx") || strings.EqualFold(q.Get("output"), "xlsx") {
			return true
		}
		return strings.EqualFold(path.Ext(u.Path), ".xlsx")
	}
	return strings.EqualFold(filepath.Ext(src), ".xlsx")
}
