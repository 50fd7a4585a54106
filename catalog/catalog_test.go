package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL + "/v1")
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(base), srv
}

func TestModel(t *testing.T) {
	const id = "3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3"

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/"+id {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "hibiki/") {
			t.Errorf("user agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"uuid": "` + id + `",
			"name": "Tsukuyomi",
			"model_files": [
				{"model_type": "HVM", "version": "1.1.0"},
				{"model_type": "HVMX", "version": "1.2.0"}
			]
		}`))
	})

	info, err := c.Model(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Tsukuyomi" {
		t.Errorf("name = %q", info.Name)
	}

	v, ok := info.PackedVersion()
	if !ok || v != "1.2.0" {
		t.Errorf("PackedVersion() = %q, %v", v, ok)
	}
}

func TestModelNotFound(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "{}", http.StatusNotFound)
	})

	_, err := c.Model(context.Background(), "0e73ab32-4a6c-4b41-9b30-2e4e20dd0e91")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestModelStatusError(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream exploded"}`))
	})

	_, err := c.Model(context.Background(), "0e73ab32-4a6c-4b41-9b30-2e4e20dd0e91")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadGateway || se.Message != "upstream exploded" {
		t.Errorf("got %d %q", se.StatusCode, se.Message)
	}
}

func TestPackedVersionMissing(t *testing.T) {
	cases := map[string]ModelInfo{
		"no files":       {},
		"no packed file": {ModelFiles: []ModelFile{{ModelType: "HVM", Version: "1.0.0"}}},
		"empty version":  {ModelFiles: []ModelFile{{ModelType: "HVMX"}}},
	}

	for name, info := range cases {
		t.Run(name, func(t *testing.T) {
			if v, ok := info.PackedVersion(); ok {
				t.Errorf("expected no packed version, got %q", v)
			}
		})
	}
}

func TestResolveDownloadURL(t *testing.T) {
	base, _ := url.Parse("https://api.hibikihub.com/v1")
	c := NewClient(base)

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{
			"https://hub.hibikihub.com/models/3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3",
			"https://api.hibikihub.com/v1/models/3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3/download?model_type=HVMX",
			true,
		},
		{
			// trailing segments are tolerated, uuid is canonicalized
			"https://hub.hibikihub.com/models/3F1C4E5A-9D27-4B86-A0B2-6C51E84DD0F3/files",
			"https://api.hibikihub.com/v1/models/3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3/download?model_type=HVMX",
			true,
		},
		{"https://hub.hibikihub.com/models/not-a-uuid", "", false},
		{"https://example.com/models/3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3", "", false},
		{"http://hub.hibikihub.com/models/3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3", "", false},
		{"https://cdn.example.com/files/model.hvmx", "", false},
	}

	for _, tt := range cases {
		got, ok := c.ResolveDownloadURL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveDownloadURL(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDownload(t *testing.T) {
	const id = "3f1c4e5a-9d27-4b86-a0b2-6c51e84dd0f3"

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models/" + id + "/download":
			if got := r.URL.Query().Get("model_type"); got != PackedModelType {
				t.Errorf("model_type = %q", got)
			}
			http.Redirect(w, r, "/files/"+id, http.StatusFound)
		case "/files/" + id:
			w.Write([]byte("package bytes"))
		default:
			http.NotFound(w, r)
		}
	})

	data, err := c.Download(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestFetchForbidden(t *testing.T) {
	c, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no access"}`, http.StatusForbidden)
	})

	_, err := c.Fetch(context.Background(), srv.URL+"/private.hvmx")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", se.StatusCode)
	}
}
