// package server contains the local OAuth callback server used by `adder auth`
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers served by the callback server.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// CallbackServer serves a single OAuth callback and shuts down.
type CallbackServer struct {
	addr     string
	handler  *OAuthHandler
	srv      *http.Server
	listener net.Listener
	errs     chan error
	logger   *log.Logger
}

// NewCallbackServer creates a server on addr that exchanges the callback code using config.
func NewCallbackServer(addr string, config *oauth2.Config, state string, logger *log.Logger) *CallbackServer {
	handler := NewOAuthHandler(config, state)

	router := NewBasicRouter()
	if logger != nil {
		router.Use(RequestLogger(logger))
	}
	router.Handler(handler)

	return &CallbackServer{
		addr:    addr,
		handler: handler,
		srv:     &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		errs:    make(chan error, 1),
		logger:  logger,
	}
}

// Start binds the listener and serves in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return nil
}

// Addr returns the bound address, which differs from the configured one when port 0 was requested.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Wait blocks until the callback delivers a token, the server fails or ctx is done, then shuts the server down.
func (s *CallbackServer) Wait(ctx context.Context) (*oauth2.Token, error) {
	defer s.shutdown()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return nil, err
		}
		return result.Token, nil
	case err := <-s.errs:
		return nil, fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil && s.logger != nil {
		s.logger.Warn("error shutting down server", "error", err)
	}
}

// RequestLogger logs each request at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("callback request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
