// Package catalog is the client for the HibikiHub model catalog, the remote
// service holding the authoritative latest-version listing per model.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/version"
)

// PackedModelType tags the packed (.hvmx) file variant in catalog listings
// and download requests.
const PackedModelType = "HVMX"

// ErrModelNotFound is returned when the catalog has no listing for a model.
// Installed models that were never published, or were delisted, hit this on
// every update check; callers treat it as "no information", not a failure.
var ErrModelNotFound = errors.New("model not found in catalog")

// StatusError is a non-2xx catalog response other than not-found.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog: %s: %s", e.Status, e.Message)
	}
	return "catalog: " + e.Status
}

// ModelFile is one downloadable variant of a published model.
type ModelFile struct {
	ModelType string `json:"model_type"`
	Version   string `json:"version"`
}

// ModelInfo is the catalog listing for one model.
type ModelInfo struct {
	UUID       string      `json:"uuid"`
	Name       string      `json:"name"`
	ModelFiles []ModelFile `json:"model_files"`
}

// PackedVersion returns the version string of the packed file variant.
// ok is false when the listing carries no usable packed variant.
func (i *ModelInfo) PackedVersion() (string, bool) {
	for _, f := range i.ModelFiles {
		if f.ModelType == PackedModelType {
			return f.Version, f.Version != ""
		}
	}
	return "", false
}

// modelPagePattern recognizes hub model page URLs and captures the uuid.
// Prefix match: trailing path segments and query strings are tolerated.
var modelPagePattern = regexp.MustCompile(`^https://hub\.hibikihub\.com/models/([0-9a-fA-F-]{36})`)

// Client talks to one catalog endpoint. Listing lookups use a plain client
// so the caller's context is the only timeout; package downloads get a
// retrying client since they are large, rare, and user-initiated.
type Client struct {
	base     *url.URL
	http     *http.Client
	download *retryablehttp.Client
}

// NewClient returns a client for the catalog API rooted at base.
func NewClient(base *url.URL) *Client {
	download := retryablehttp.NewClient()
	download.RetryMax = 2
	download.RetryWaitMin = time.Second
	download.RetryWaitMax = 10 * time.Second
	download.HTTPClient.Timeout = 10 * time.Minute
	download.Logger = nil

	return &Client{
		base:     base,
		http:     http.DefaultClient,
		download: download,
	}
}

// DefaultClient returns a client for the configured hub (HIBIKI_HUB).
func DefaultClient() *Client {
	return NewClient(envconfig.HubURL())
}

// Model fetches the catalog listing for one model identity.
func (c *Client) Model(ctx context.Context, id string) (*ModelInfo, error) {
	u := c.base.JoinPath("models", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var info ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding catalog listing: %w", err)
	}
	return &info, nil
}

// DownloadURL returns the canonical download endpoint for the packed
// variant of the model.
func (c *Client) DownloadURL(id string) string {
	u := c.base.JoinPath("models", id, "download")
	u.RawQuery = url.Values{"model_type": {PackedModelType}}.Encode()
	return u.String()
}

// ResolveDownloadURL rewrites a hub model page URL to the model's download
// endpoint. ok is false when rawURL is not a recognizable page URL; the
// caller should then fetch rawURL as handed in.
func (c *Client) ResolveDownloadURL(rawURL string) (string, bool) {
	m := modelPagePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return "", false
	}
	return c.DownloadURL(id.String()), true
}

// Download fetches the packed package bytes for the model.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	return c.Fetch(ctx, c.DownloadURL(id))
}

// Fetch downloads rawURL with the retrying client, following redirects.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent())

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}

	var apiError struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, &apiError); err != nil || apiError.Error == "" {
		apiError.Error = strings.TrimSpace(string(body))
	}

	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    apiError.Error,
	}
}

func userAgent() string {
	return fmt.Sprintf("hibiki/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}
