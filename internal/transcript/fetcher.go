// Package transcript retrieves provider result documents and extracts the
// plain-text transcript from them.
package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/storage"
	"github.com/yoockh/medscribe/internal/utils"
)

const DefaultMaxBytes = int64(20 << 20)

type Option func(*Fetcher)

// WithOpener routes locators of the given store ("s3", "gs") through o.
func WithOpener(store string, o storage.Opener) Option {
	return func(f *Fetcher) { f.openers[store] = o }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithBuckets restricts object store reads to the named buckets. With no
// buckets configured any bucket the openers can reach is read.
func WithBuckets(buckets ...string) Option {
	return func(f *Fetcher) {
		for _, b := range buckets {
			if b = strings.TrimSpace(b); b != "" {
				f.buckets[b] = struct{}{}
			}
		}
	}
}

// WithHTTPHosts allows plain http(s) result URLs on the given hosts
// (host or host:port). Without it such URLs are rejected.
func WithHTTPHosts(hosts ...string) Option {
	return func(f *Fetcher) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				f.hosts[h] = struct{}{}
			}
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// Fetcher reads result documents only from configured sources: object
// stores with an opener (optionally limited to some buckets) and allowed
// http(s) hosts.
type Fetcher struct {
	openers  map[string]storage.Opener
	buckets  map[string]struct{}
	hosts    map[string]struct{}
	http     *http.Client
	maxBytes int64
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		openers:  map[string]storage.Opener{},
		buckets:  map[string]struct{}{},
		hosts:    map[string]struct{}{},
		http:     &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxBytes,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, locator models.Locator) (string, error) {
	doc, err := f.Document(ctx, locator)
	if err != nil {
		return "", err
	}
	return Extract(doc)
}

// Document returns the raw result document behind locator.
func (f *Fetcher) Document(ctx context.Context, locator models.Locator) ([]byte, error) {
	const op = "Fetcher.Document"

	ref, err := locator.Parse()
	if err != nil {
		return nil, utils.ValidationError(op, "invalid result locator", err)
	}

	body, err := f.open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, utils.FetchError(op, "failed to read result document", err)
	}
	if int64(len(doc)) > f.maxBytes {
		return nil, utils.FetchError(op, "result document exceeds size limit", nil)
	}
	return doc, nil
}

func (f *Fetcher) open(ctx context.Context, ref models.ObjectRef) (io.ReadCloser, error) {
	const op = "Fetcher.open"

	if ref.Store == "" {
		u, err := url.Parse(ref.URL)
		if err != nil || !isHTTP(ref.URL) {
			return nil, utils.ValidationError(op, "invalid result url", err)
		}
		if _, ok := f.hosts[strings.ToLower(u.Host)]; !ok {
			return nil, utils.ValidationError(op, fmt.Sprintf("result host %q is not allowed", u.Host), nil)
		}
		return f.get(ctx, ref.URL)
	}

	o, ok := f.openers[ref.Store]
	if !ok {
		return nil, utils.FetchError(op, fmt.Sprintf("no reader configured for %s:// locators", ref.Store), nil)
	}
	if len(f.buckets) > 0 {
		if _, ok := f.buckets[ref.Bucket]; !ok {
			return nil, utils.ValidationError(op, fmt.Sprintf("result bucket %q is not allowed", ref.Bucket), nil)
		}
	}
	body, err := o.Open(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, utils.K(utils.KindFetch, utils.CodeOf(err), op, "failed to open result object", err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	const op = "Fetcher.get"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.ValidationError(op, "invalid result url", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, utils.FetchError(op, "result request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, utils.FetchError(op, fmt.Sprintf("result request returned status %d", resp.StatusCode), nil)
	}
	return resp.Body, nil
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
