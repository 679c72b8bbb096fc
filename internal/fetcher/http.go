package fetcher

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int           // attempts per request, default 3
	Backoff    time.Duration // base retry delay, default 1s
	HostRates  map[string]rate.Limit
}

// defaultHostRate applies to hosts without an entry in HostRates.
const defaultHostRate rate.Limit = 20

// SheetHostRates are request rates for hosts that publish spreadsheets and
// answer bursts with 429.
func SheetHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"docs.google.com":           2,
		"drive.google.com":          2,
		"onedrive.live.com":         2,
		"raw.githubusercontent.com": 5,
	}
}

// hostLimiter paces requests to one host. A 429 halves the rate down to a
// quarter of the base; each success raises it 20% up to twice the base.
type hostLimiter struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	base rate.Limit
}

func newHostLimiter(r rate.Limit) *hostLimiter {
	burst := int(math.Max(1, float64(r)))
	return &hostLimiter{lim: rate.NewLimiter(r, burst), base: r}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.lim.Wait(ctx)
}

func (h *hostLimiter) succeeded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lim.SetLimit(min(h.lim.Limit()*1.2, h.base*2))
}

func (h *hostLimiter) throttled() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lim.SetLimit(max(h.lim.Limit()*0.5, h.base/4))
}

func (h *hostLimiter) limit() rate.Limit {
	return h.lim.Limit()
}

// HTTPFetcher downloads published sheets with retries, jittered backoff and
// per-host pacing.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

// NewHTTPFetcher creates an HTTPFetcher. Zero options take defaults and a nil
// HostRates uses SheetHostRates.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "site-selection/1.0"
	}
	if opts.HostRates == nil {
		opts.HostRates = SheetHostRates()
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		hosts: make(map[string]*hostLimiter),
	}
}

func (f *HTTPFetcher) limiter(host string) *hostLimiter {
	host = strings.ToLower(host)
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hosts[host]; ok {
		return h
	}
	r, ok := f.opts.HostRates[host]
	if !ok {
		r = defaultHostRate
	}
	h := newHostLimiter(r)
	f.hosts[host] = h
	return h
}

// Fetch downloads the sheet at rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, _, err := f.FetchIfChanged(ctx, rawURL, "")
	return body, err
}

// FetchIfChanged downloads the sheet unless the server reports etag unchanged.
func (f *HTTPFetcher) FetchIfChanged(ctx context.Context, rawURL, etag string) ([]byte, string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, "", false, eris.Errorf("http: invalid url %q", rawURL)
	}

	resp, err := f.get(ctx, u, etag)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, etag, false, nil
	case http.StatusOK:
	default:
		return nil, "", false, eris.Errorf("http: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := readBody(resp.Body, rawURL)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "http")
	}
	return body, resp.Header.Get("ETag"), true, nil
}

// get issues a GET, retrying transport errors, 429 and 5xx responses.
func (f *HTTPFetcher) get(ctx context.Context, u *url.URL, etag string) (*http.Response, error) {
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("url", u.String()))
	host := f.limiter(u.Host)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := f.sleep(ctx, attempt-1); err != nil {
				return nil, eris.Wrap(err, "http: backoff")
			}
		}
		if err := host.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "http: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		switch {
		case err != nil:
			lastErr = err
			log.Warn("sheet request failed", zap.Int("attempt", attempt+1), zap.Error(err))
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			host.throttled()
			lastErr = eris.Errorf("http 429 from %s", u.Host)
			log.Warn("sheet host throttled", zap.Int("attempt", attempt+1), zap.Float64("rate", float64(host.limit())))
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, u.Host)
			log.Warn("sheet host error", zap.Int("attempt", attempt+1), zap.Int("status", resp.StatusCode))
		default:
			host.succeeded()
			return resp, nil
		}
	}
	return nil, eris.Wrapf(lastErr, "http: gave up after %d attempts", f.opts.MaxRetries)
}

// sleep waits base*2^n plus up to 50% jitter, capped at 30s.
func (f *HTTPFetcher) sleep(ctx context.Context, n int) error {
	d := min(time.Duration(float64(f.opts.Backoff)*math.Pow(2, float64(n))), 30*time.Second)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
