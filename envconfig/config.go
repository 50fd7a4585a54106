// Package envconfig reads hibiki configuration from HIBIKI_* environment
// variables. Every accessor re-reads the environment so tests can use
// t.Setenv without coordination.
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host returns the scheme and host the server binds to, or the client
// connects to. Configurable via HIBIKI_HOST.
// Default: http://127.0.0.1:10301
func Host() *url.URL {
	defaultPort := "10301"

	s := strings.TrimSpace(Var("HIBIKI_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins returns origins accepted by the CORS layer in addition to
// the host allow-list. Configurable via HIBIKI_ORIGINS (comma separated).
// Localhost variants and the hub frontend are always included.
func AllowedOrigins() (origins []string) {
	if s := Var("HIBIKI_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"https://hub.hibikihub.com",
		"app://*",
		"file://*",
		"tauri://*",
	)

	return origins
}

// Models returns the directory installed model packages live in.
// Configurable via HIBIKI_MODELS.
// Default: $HOME/.hibiki/models
func Models() string {
	if s := Var("HIBIKI_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".hibiki", "models")
}

// HubURL returns the base URL of the HibikiHub catalog API.
// Configurable via HIBIKI_HUB.
// Default: https://api.hibikihub.com/v1
func HubURL() *url.URL {
	s := strings.TrimSuffix(Var("HIBIKI_HUB"), "/")
	if s == "" {
		s = "https://api.hibikihub.com/v1"
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		slog.Warn("invalid hub url, using default", "HIBIKI_HUB", s)
		return &url.URL{Scheme: "https", Host: "api.hibikihub.com", Path: "/v1"}
	}

	return u
}

// LogLevel returns the slog level for the server.
// Configurable via HIBIKI_DEBUG: 0/false = INFO (default), 1/true = DEBUG,
// 2 = TRACE.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("HIBIKI_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var returns an environment variable, stripped of surrounding quotes and
// whitespace.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
