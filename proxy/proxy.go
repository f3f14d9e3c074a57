// Package proxy forwards chat API calls to the upstream endpoint with the
// API key attached, so clients on the local network never hold the key.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"seekchat/config"
)

const copyBufferSize = 8192

var forwardedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Server is the forwarding proxy.
type Server struct {
	echo     *echo.Echo
	listen   string
	upstream string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

type Option func(*Server)

// WithTimeout overrides how long to wait for upstream response headers.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// New builds a Server from cfg. Empty fields fall back to the defaults.
func New(cfg config.ProxyConfig, opts ...Option) (*Server, error) {
	s := &Server{
		listen:   cfg.Listen,
		upstream: strings.TrimRight(cfg.Upstream, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout(),
	}
	if s.listen == "" {
		s.listen = config.DefaultProxyListen
	}
	if s.upstream == "" {
		s.upstream = config.DefaultProxyUpstream
	}
	if s.timeout <= 0 {
		s.timeout = config.DefaultProxyTimeout * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}

	if u, err := url.Parse(s.upstream); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", s.upstream)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = s.timeout
	s.client = &http.Client{Transport: transport}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Match(forwardedMethods, "/*", s.forward)
	s.echo = e

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Addr() string {
	return s.listen
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		config.DebugLog.Info("proxy listening", "addr", s.listen, "upstream", s.upstream)
		errCh <- s.echo.Start(s.listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to run proxy: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) forward(c echo.Context) error {
	req := c.Request()
	target := s.upstream + req.URL.Path
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}

	config.DebugLog.Debug("proxy request", "method", req.Method, "path", req.URL.Path)

	var body io.Reader
	if req.Method == http.MethodPost || req.Method == http.MethodPut {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
		}
		if len(data) > 0 {
			if !json.Valid(data) {
				config.DebugLog.Warn("proxy rejected invalid JSON body", "path", req.URL.Path)
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
			}
			body = bytes.NewReader(data)
		}
	}

	upReq, err := http.NewRequestWithContext(req.Context(), req.Method, target, body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	upReq.Header.Set(echo.HeaderAuthorization, "Bearer "+s.apiKey)
	upReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	resp, err := s.client.Do(upReq)
	if err != nil {
		if isTimeout(err) {
			config.DebugLog.Error("proxy upstream timed out", "target", target)
			return echo.NewHTTPError(http.StatusGatewayTimeout, "Gateway Timeout: The request to the upstream server timed out")
		}
		config.DebugLog.Error("proxy upstream failed", "target", target, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer resp.Body.Close()

	config.DebugLog.Debug("proxy upstream response", "status", resp.StatusCode)

	res := c.Response()
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "" {
		res.Header().Set(echo.HeaderContentType, ct)
	}
	res.WriteHeader(resp.StatusCode)

	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := res.Write(buf[:n]); err != nil {
				config.DebugLog.Warn("proxy client went away", "err", err)
				return nil
			}
			res.Flush()
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			// Status is already sent; all that is left is to stop.
			config.DebugLog.Error("proxy upstream body failed", "err", readErr)
			return nil
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
