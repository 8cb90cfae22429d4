package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive paths of the published BERT releases, relative to the base URL.
var knownCheckpoints = map[string]string{
	"bert-base-uncased":      "2018_10_18/uncased_L-12_H-768_A-12.zip",
	"bert-large-uncased":     "2018_10_18/uncased_L-24_H-1024_A-16.zip",
	"bert-base-cased":        "2018_10_18/cased_L-12_H-768_A-12.zip",
	"bert-large-cased":       "2018_10_18/cased_L-24_H-1024_A-16.zip",
	"bert-base-multilingual": "2018_11_23/multi_cased_L-12_H-768_A-12.zip",
	"bert-base-chinese":      "2018_11_03/chinese_L-12_H-768_A-12.zip",
}

const defaultBaseURL = "https://storage.googleapis.com/bert_models"

// Client downloads checkpoint archives and unpacks them into a models
// directory.
type Client struct {
	baseURL    string
	dir        string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(u); v != "" {
			c.baseURL = strings.TrimRight(v, "/")
		}
	}
}

func WithDir(dir string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(dir); v != "" {
			c.dir = v
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		dir:        "models",
		httpClient: &http.Client{Timeout: 15 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Known reports whether name is a published checkpoint alias.
func Known(name string) bool {
	_, ok := knownCheckpoints[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// KnownNames lists the checkpoint aliases the client can resolve.
func KnownNames() []string {
	names := make([]string, 0, len(knownCheckpoints))
	for name := range knownCheckpoints {
		names = append(names, name)
	}
	return names
}

// Download fetches the named checkpoint archive and unpacks it under the
// client's models directory. Name may be a known alias or an archive path
// relative to the base URL. Returns the extraction directory.
func (c *Client) Download(ctx context.Context, name string) (string, error) {
	if c == nil {
		return "", errors.New("checkpoint: nil client")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("checkpoint: empty checkpoint name")
	}

	rel, ok := knownCheckpoints[strings.ToLower(name)]
	if !ok {
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			return "", fmt.Errorf("checkpoint: unknown checkpoint %q (known: %s)",
				name, strings.Join(KnownNames(), ", "))
		}
		rel = name
	}
	url := c.baseURL + "/" + rel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("checkpoint: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkpoint: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("checkpoint: fetch %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: create models dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "checkpoint-*.zip")
	if err != nil {
		return "", fmt.Errorf("checkpoint: create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("checkpoint: download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("checkpoint: close temp archive: %w", err)
	}

	root, err := unzip(tmpPath, c.dir)
	if err != nil {
		return "", err
	}
	if root == "" {
		return c.dir, nil
	}
	return filepath.Join(c.dir, root), nil
}
