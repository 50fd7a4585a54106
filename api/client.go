// Package api implements the client-side API for code wishing to interact
// with the hibiki service. The methods of the [Client] type correspond to
// the hibiki REST API. The hibiki command-line client itself uses this
// package to interact with the backend service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/types/styleid"
	"github.com/hibiki-voice/hibiki/version"
)

// Client encapsulates client state for interacting with the hibiki
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if the response was not JSON.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable HIBIKI_HOST, which points to the network host and
// port on which the hibiki service is listening. The format of this
// variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	contentType := "application/json"

	switch reqData := reqData.(type) {
	case io.Reader:
		// raw body, e.g. package bytes
		reqBody = reqData
		contentType = "application/octet-stream"
	case nil:
		// noop
	default:
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	// JoinPath escapes "?", so the query has to ride separately.
	pathname, query, _ := strings.Cut(path, "?")

	requestURL := c.base.JoinPath(pathname)
	requestURL.RawQuery = query

	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("hibiki/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Heartbeat checks if the server is running.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// List returns the installed models. refresh forces a rescan of the models
// directory; wait additionally blocks until the update check against the
// catalog has finished.
func (c *Client) List(ctx context.Context, refresh, wait bool) (*ListResponse, error) {
	path := "/api/models"
	if refresh || wait {
		q := url.Values{}
		if refresh {
			q.Set("refresh", "true")
		}
		if wait {
			q.Set("wait", "true")
		}
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns one installed model by identity.
func (c *Client) Get(ctx context.Context, id string) (*ModelResponse, error) {
	var resp ModelResponse
	if err := c.do(ctx, http.MethodGet, "/api/models/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Install uploads raw package bytes and installs them.
func (c *Client) Install(ctx context.Context, r io.Reader) (*ModelResponse, error) {
	var resp ModelResponse
	if err := c.do(ctx, http.MethodPost, "/api/models/install", r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull downloads and installs a package from a URL, either a direct link or
// a hub model page.
func (c *Client) Pull(ctx context.Context, rawURL string) (*ModelResponse, error) {
	var resp ModelResponse
	if err := c.do(ctx, http.MethodPost, "/api/models/pull", &PullRequest{URL: rawURL}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update re-installs a model from the catalog when an update is available.
func (c *Client) Update(ctx context.Context, id string) (*ModelResponse, error) {
	var resp ModelResponse
	if err := c.do(ctx, http.MethodPost, "/api/models/"+id+"/update", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove uninstalls a model and deletes its package file.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/models/"+id, nil, nil)
}

// SetLoadState marks a model as loaded or unloaded in the synthesis
// runtime. Unknown identities are ignored by the server.
func (c *Client) SetLoadState(ctx context.Context, id string, loaded bool) error {
	return c.do(ctx, http.MethodPost, "/api/models/"+id+"/load-state", &LoadStateRequest{Loaded: loaded}, nil)
}

// Speakers returns every speaker of every installed model, sorted by name.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	var resp []Speaker
	if err := c.do(ctx, http.MethodGet, "/api/speakers", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SpeakerInfo returns the display extras for one speaker.
func (c *Client) SpeakerInfo(ctx context.Context, id string) (*SpeakerInfo, error) {
	var resp SpeakerInfo
	if err := c.do(ctx, http.MethodGet, "/api/speakers/"+id+"/info", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Style resolves a global style id to its owning model, speaker and style.
func (c *Client) Style(ctx context.Context, id styleid.ID) (*StyleResponse, error) {
	var resp StyleResponse
	if err := c.do(ctx, http.MethodGet, "/api/styles/"+strconv.Itoa(int(id)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
