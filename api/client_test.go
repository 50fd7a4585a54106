package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(base, srv.Client())
}

func TestVersion(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/version" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "hibiki/") {
			t.Errorf("user agent = %q", ua)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("accept = %q", accept)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"1.2.3"}`))
	})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.3" {
		t.Errorf("version = %q", v)
	}
}

func TestListQuery(t *testing.T) {
	var got url.Values
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[]}`))
	})

	if _, err := c.List(context.Background(), true, true); err != nil {
		t.Fatal(err)
	}
	if got.Get("refresh") != "true" || got.Get("wait") != "true" {
		t.Errorf("query = %v", got)
	}

	if _, err := c.List(context.Background(), false, false); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("query = %v", got)
	}
}

func TestInstallSendsRawBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/models/install" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "package bytes" {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uuid":"5f3b9c01-6c2f-47e1-9a05-3f86f1a2d4b7","name":"Aoi"}`))
	})

	m, err := c.Install(context.Background(), strings.NewReader("package bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Aoi" {
		t.Errorf("name = %q", m.Name)
	}
}

func TestPullSendsJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req PullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL != "https://example.com/m.hvmx" {
			t.Errorf("request = %+v (%v)", req, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uuid":"5f3b9c01-6c2f-47e1-9a05-3f86f1a2d4b7"}`))
	})

	if _, err := c.Pull(context.Background(), "https://example.com/m.hvmx"); err != nil {
		t.Fatal(err)
	}
}

func TestNoContentResponses(t *testing.T) {
	const id = "5f3b9c01-6c2f-47e1-9a05-3f86f1a2d4b7"

	var method, path string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Remove(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodDelete || path != "/api/models/"+id {
		t.Errorf("%s %s", method, path)
	}

	if err := c.SetLoadState(context.Background(), id, true); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/api/models/"+id+"/load-state" {
		t.Errorf("%s %s", method, path)
	}
}

func TestStylePath(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/styles/439508480" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":439508480,"model":"5f3b9c01-6c2f-47e1-9a05-3f86f1a2d4b7"}`))
	})

	resp, err := c.Style(context.Background(), 439508480)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Model != "5f3b9c01-6c2f-47e1-9a05-3f86f1a2d4b7" {
		t.Errorf("model = %q", resp.Model)
	}
}

func TestStatusError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model is not installed"}`))
	})

	_, err := c.Get(context.Background(), "0e73ab32-4a6c-4b41-9b30-2e4e20dd0e91")
	var se StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.ErrorMessage != "model is not installed" {
		t.Errorf("message = %q", se.ErrorMessage)
	}
}

func TestStatusErrorPlainBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("boom"))
	})

	_, err := c.Version(context.Background())
	var se StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.ErrorMessage != "boom" {
		t.Errorf("message = %q", se.ErrorMessage)
	}
}
