package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu    sync.Mutex
	etags map[string]string
	body  map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{etags: map[string]string{}, body: map[string][]byte{}}
}

func (m *memCache) GetSource(_ context.Context, url string) (string, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	etag, ok := m.etags[url]
	return etag, m.body[url], ok, nil
}

func (m *memCache) PutSource(_ context.Context, url, etag string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags[url] = etag
	m.body[url] = body
	return nil
}

func testReader(cache SourceCache) *Reader {
	return NewReader(HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 1, Backoff: time.Millisecond}, cache)
}

func TestTable_IndexAndCell(t *testing.T) {
	tbl := &Table{
		Header: []string{" Brand ", "LATITUDE", "longitude"},
		Rows:   [][]string{{"Jollibee", " 14.8 "}},
	}

	assert.Equal(t, 0, tbl.Index("brand"))
	assert.Equal(t, 1, tbl.Index("latitude"))
	assert.Equal(t, -1, tbl.Index("category"))
	assert.Equal(t, -1, tbl.Index(""))
	assert.Equal(t, []string{"category"}, tbl.Missing("brand", "category"))

	assert.Equal(t, "14.8", tbl.Cell(0, 1))
	assert.Equal(t, "", tbl.Cell(0, 2), "short row")
	assert.Equal(t, "", tbl.Cell(5, 0))
}

func TestReadTable_LocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "competitors.csv")
	require.NoError(t, os.WriteFile(path, []byte("brand,latitude,longitude\nA,14.8,120.8\n,,\nB,14.9,120.9\n"), 0o644))

	tbl, err := testReader(nil).ReadTable(context.Background(), path, TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand", "latitude", "longitude"}, tbl.Header)
	require.Len(t, tbl.Rows, 2, "blank rows are skipped")
	assert.Equal(t, "B", tbl.Rows[1][0])
}

func TestReadTable_LocalXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sales": {{"branch", "month", "sales"}, {"Malolos 1", "2024-01", "1200"}},
	})

	tbl, err := testReader(nil).ReadTable(context.Background(), path, TableOptions{Sheet: "Sales"})
	require.NoError(t, err)
	assert.Equal(t, []string{"branch", "month", "sales"}, tbl.Header)
	assert.Equal(t, [][]string{{"Malolos 1", "2024-01", "1200"}}, tbl.Rows)
}

func TestReadTable_MissingFile(t *testing.T) {
	_, err := testReader(nil).ReadTable(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), TableOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open")
}

func TestReadTable_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	tbl, err := testReader(nil).ReadTable(context.Background(), path, TableOptions{})
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestReadTable_HTTPUsesSourceCache(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		gets.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("brand,latitude,longitude\nA,14.8,120.8\n"))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := testReader(cache)
	src := srv.URL + "/pub?output=csv"

	first, err := r.ReadTable(context.Background(), src, TableOptions{})
	require.NoError(t, err)
	second, err := r.ReadTable(context.Background(), src, TableOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), gets.Load(), "second read is served from the cache")
	assert.Equal(t, `"v1"`, cache.etags[src])
}

func TestReadTable_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testReader(nil).ReadTable(context.Background(), srv.URL+"/x.csv", TableOptions{})
	require.Error(t, err)
}

func TestReadTable_NoFTPFetcher(t *testing.T) {
	r := &Reader{}
	_, err := r.ReadTable(context.Background(), "ftp://ftp.example.ph/a.csv", TableOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ftp fetcher")
}

func TestIsXLSX(t *testing.T) {
	assert.True(t, isXLSX("data/sales.XLSX"))
	assert.True(t, isXLSX("https://docs.google.com/spreadsheets/d/x/export?format=xlsx"))
	assert.True(t, isXLSX("https://example.ph/files/sales.xlsx?dl=1"))
	assert.False(t, isXLSX("https://docs.google.com/spreadsheets/d/e/x/pub?output=csv"))
	assert.False(t, isXLSX("data/competitors.csv"))
}
