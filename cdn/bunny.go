package cdn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBunnyRegion is used when no region is configured.
const DefaultBunnyRegion = "la"

const maxErrorBody = 2048

// BunnyConfig holds Bunny storage zone settings.
type BunnyConfig struct {
	StorageZone string
	AccessKey   string
	Region      string // storage region prefix; empty selects the main endpoint
	Endpoint    string // overrides the derived base URL
}

// BaseURL returns the storage API root for the configured region.
func (c BunnyConfig) BaseURL() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	if c.Region == "" {
		return "https://storage.bunnycdn.com"
	}
	return "https://" + c.Region + ".storage.bunnycdn.com"
}

// Bunny talks to the Bunny storage HTTP API.
type Bunny struct {
	cfg    BunnyConfig
	client *http.Client
}

// NewBunny returns a Bunny storage client. A nil client gets a default with
// a generous timeout.
func NewBunny(cfg BunnyConfig, client *http.Client) (*Bunny, error) {
	if strings.TrimSpace(cfg.StorageZone) == "" || strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, fmt.Errorf("%w: storage zone and access key are required", ErrMissingCredentials)
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Bunny{cfg: cfg, client: client}, nil
}

// Target implements Storage.
func (b *Bunny) Target() string {
	return "bunny:" + b.cfg.StorageZone
}

func (b *Bunny) objectURL(key string) string {
	segs := strings.Split(strings.Trim(key, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return b.cfg.BaseURL() + "/" + url.PathEscape(b.cfg.StorageZone) + "/" + strings.Join(segs, "/")
}

// Put implements Storage.
func (b *Bunny) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.objectURL(key), body)
	if err != nil {
		return &UploadError{Key: key, Err: err}
	}
	req.ContentLength = size
	req.Header.Set("AccessKey", b.cfg.AccessKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return &UploadError{Key: key, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UploadError{Key: key, Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Clean deletes the directory at prefix. An absent directory is not an error.
func (b *Bunny) Clean(ctx context.Context, prefix string) error {
	target := b.cfg.BaseURL() + "/" + url.PathEscape(b.cfg.StorageZone) + "/"
	if p := strings.Trim(prefix, "/"); p != "" {
		target = b.objectURL(p) + "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("AccessKey", b.cfg.AccessKey)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("clean %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UploadError{Key: prefix, Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	return nil
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
