package envconfig

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// NoBootstrap disables installing the default models on first run.
	NoBootstrap = Bool("HIBIKI_NOBOOTSTRAP")

	// MaxUpdateChecks bounds how many catalog update checks run at once.
	MaxUpdateChecks = Uint("HIBIKI_MAX_CHECKS", 8)
)

// EnvVar describes one configuration variable for usage text.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every configuration variable with its current value.
func AsMap() map[string]EnvVar {
	ret := map[string]EnvVar{
		"HIBIKI_DEBUG":       {"HIBIKI_DEBUG", LogLevel(), "Show additional debug information (e.g. HIBIKI_DEBUG=1)"},
		"HIBIKI_HOST":        {"HIBIKI_HOST", Host(), "IP Address for the hibiki server (default 127.0.0.1:10301)"},
		"HIBIKI_HUB":         {"HIBIKI_HUB", HubURL(), "Base URL of the HibikiHub catalog API"},
		"HIBIKI_MAX_CHECKS":  {"HIBIKI_MAX_CHECKS", MaxUpdateChecks(), "Maximum number of concurrent update checks"},
		"HIBIKI_MODELS":      {"HIBIKI_MODELS", Models(), "The path to the models directory"},
		"HIBIKI_NOBOOTSTRAP": {"HIBIKI_NOBOOTSTRAP", NoBootstrap(), "Do not install default models on first run"},
		"HIBIKI_ORIGINS":     {"HIBIKI_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},

		"HTTP_PROXY":  {"HTTP_PROXY", String("HTTP_PROXY")(), "HTTP proxy"},
		"HTTPS_PROXY": {"HTTPS_PROXY", String("HTTPS_PROXY")(), "HTTPS proxy"},
		"NO_PROXY":    {"NO_PROXY", String("NO_PROXY")(), "No proxy"},
	}

	if runtime.GOOS != "windows" {
		ret["http_proxy"] = EnvVar{"http_proxy", String("http_proxy")(), "HTTP proxy"}
		ret["https_proxy"] = EnvVar{"https_proxy", String("https_proxy")(), "HTTPS proxy"}
		ret["no_proxy"] = EnvVar{"no_proxy", String("no_proxy")(), "No proxy"}
	}

	return ret
}

// Values returns every configuration value rendered as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
