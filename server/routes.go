// Package server exposes the model registry over the local HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/logutil"
	"github.com/hibiki-voice/hibiki/registry"
	"github.com/hibiki-voice/hibiki/version"
)

var mode string = gin.DebugMode

// Server serves the HTTP API backed by a model registry.
type Server struct {
	addr     net.Addr
	registry *registry.Registry
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	tlds := []string{
		"localhost",
		"local",
		"internal",
	}

	for _, tld := range tlds {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware rejects requests whose Host header does not look
// local while the server is bound to a loopback address. DNS-rebinding
// protection for a service that is local by default.
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes builds the HTTP handler for the API.
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "Hibiki is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Hibiki is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Models
	r.HEAD("/api/models", s.ListHandler)
	r.GET("/api/models", s.ListHandler)
	r.GET("/api/models/:model", s.ShowHandler)
	r.POST("/api/models/install", s.InstallHandler)
	r.POST("/api/models/pull", s.PullHandler)
	r.POST("/api/models/:model/update", s.UpdateHandler)
	r.DELETE("/api/models/:model", s.DeleteHandler)
	r.POST("/api/models/:model/load-state", s.LoadStateHandler)

	// Speakers and styles
	r.GET("/api/speakers", s.SpeakersHandler)
	r.GET("/api/speakers/:speaker/info", s.SpeakerInfoHandler)
	r.GET("/api/styles/:id", s.StyleHandler)

	return r, nil
}

// Serve runs the HTTP server on ln until SIGINT or SIGTERM.
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	reg, err := registry.New(envconfig.Models(), nil)
	if err != nil {
		return err
	}

	ctx, done := context.WithCancel(context.Background())
	defer done()

	// scan and, on a fresh install, pull the default models before
	// accepting requests
	reg.Bootstrap(ctx)

	s := &Server{addr: ln.Addr(), registry: reg}
	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	http.Handle("/", h)

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{
		// Use http.DefaultServeMux so we get net/http/pprof for free.
		Handler: nil,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		done()
	}()

	if err := srvr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-ctx.Done()
	return nil
}
