package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	StoreS3  = "s3"
	StoreGCS = "gs"
)

var ErrMalformedLocator = errors.New("malformed locator")

// Locator identifies a stored object, e.g. s3://bucket/key.
type Locator string

func (l Locator) String() string { return string(l) }

func S3Locator(bucket, key string) Locator {
	return Locator("s3://" + bucket + "/" + key)
}

func GCSLocator(bucket, key string) Locator {
	return Locator("gs://" + bucket + "/" + key)
}

// ObjectRef is a parsed Locator. Store is empty for plain http(s) URLs
// that do not point into a known object store.
type ObjectRef struct {
	Store  string
	Bucket string
	Key    string
	URL    string
}

func (l Locator) Parse() (ObjectRef, error) {
	raw := strings.TrimSpace(string(l))
	if raw == "" {
		return ObjectRef{}, fmt.Errorf("%w: empty", ErrMalformedLocator)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("%w: %v", ErrMalformedLocator, err)
	}

	switch strings.ToLower(u.Scheme) {
	case StoreS3, StoreGCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return ObjectRef{}, fmt.Errorf("%w: %q needs bucket and key", ErrMalformedLocator, raw)
		}
		return ObjectRef{Store: strings.ToLower(u.Scheme), Bucket: u.Host, Key: key, URL: raw}, nil
	case "http", "https":
		if u.Host == "" {
			return ObjectRef{}, fmt.Errorf("%w: %q has no host", ErrMalformedLocator, raw)
		}
		if bucket, key, ok := parseS3Host(u); ok {
			return ObjectRef{Store: StoreS3, Bucket: bucket, Key: key, URL: raw}, nil
		}
		if bucket, key, ok := parseGCSHost(u); ok {
			return ObjectRef{Store: StoreGCS, Bucket: bucket, Key: key, URL: raw}, nil
		}
		return ObjectRef{URL: raw}, nil
	default:
		return ObjectRef{}, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedLocator, u.Scheme)
	}
}

// parseS3Host handles path-style (s3.<region>.amazonaws.com/bucket/key) and
// virtual-hosted (bucket.s3.<region>.amazonaws.com/key) URLs.
func parseS3Host(u *url.URL) (string, string, bool) {
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return "", "", false
	}
	path := strings.TrimPrefix(u.Path, "/")

	if strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-") {
		bucket, key, found := strings.Cut(path, "/")
		if !found || bucket == "" || key == "" {
			return "", "", false
		}
		return bucket, key, true
	}
	for _, marker := range []string{".s3.", ".s3-"} {
		if i := strings.Index(host, marker); i > 0 && path != "" {
			return host[:i], path, true
		}
	}
	return "", "", false
}

func parseGCSHost(u *url.URL) (string, string, bool) {
	if strings.ToLower(u.Hostname()) != "storage.googleapis.com" {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
