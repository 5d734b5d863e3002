// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package server exposes the tool registry as JSON-RPC 2.0 over one HTTP
// POST endpoint.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	apperrors "homefs/internal/errors"
	"homefs/internal/tools"
)

const (
	defaultEndpoint        = "/rpc"
	defaultMaxRequestBytes = 8 * 1024 * 1024
	defaultRequestTimeout  = 60 * time.Second
	shutdownTimeout        = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Endpoint        string
	Token           string
	MaxRequestBytes int64
	RequestTimeout  time.Duration
	RateLimit       RateLimitConfig
}

// settings holds the parts of Options that may change on config reload.
type settings struct {
	token   []byte
	limiter *clientRateLimiter
}

// Server serves JSON-RPC requests against a tool registry.
type Server struct {
	registry *tools.Registry
	logger   zerolog.Logger
	opts     Options
	router   *httprouter.Router
	current  atomic.Pointer[settings]
}

// New creates a server for registry.
func New(registry *tools.Registry, opts Options, logger zerolog.Logger) *Server {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = defaultMaxRequestBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{
		registry: registry,
		logger:   logger,
		opts:     opts,
		router:   httprouter.New(),
	}
	s.Reload(opts.Token, opts.RateLimit)
	s.setupRoutes()
	return s
}

// Reload swaps the token and rate limits. Existing client buckets are
// dropped.
func (s *Server) Reload(token string, rateLimit RateLimitConfig) {
	s.current.Store(&settings{
		token:   []byte(token),
		limiter: newClientRateLimiter(rateLimit),
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       s.opts.RequestTimeout,
		WriteTimeout:      s.opts.RequestTimeout + shutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", listener.Addr().String()).
			Str("endpoint", s.opts.Endpoint).
			Str("max_request", units.BytesSize(float64(s.opts.MaxRequestBytes))).
			Msg("listening")
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.POST(s.opts.Endpoint, s.handleRPC)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	remote := clientKey(r)
	cur := s.current.Load()

	if ok, wait := cur.limiter.Allow(remote); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		err := apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded").
			With("retry_after_seconds", int(wait.Seconds())+1)
		s.writeError(w, http.StatusTooManyRequests, nil, toRPCError(err))
		s.logRequest(r, remote, "", "", start, err)
		return
	}

	if !authorized(r, cur.token) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="homefs"`)
		err := apperrors.New(apperrors.CodeUnauthorized, "missing or invalid bearer token")
		s.writeError(w, http.StatusUnauthorized, nil, toRPCError(err))
		s.logRequest(r, remote, "", "", start, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			coded := apperrors.Newf(apperrors.CodeInvalidArgument, "request body exceeds %s", units.BytesSize(float64(tooLarge.Limit)))
			rpcErr := toRPCError(coded)
			rpcErr.Code = codeInvalidRequest
			s.writeError(w, http.StatusRequestEntityTooLarge, nil, rpcErr)
			s.logRequest(r, remote, "", "", start, coded)
			return
		}
		s.writeError(w, http.StatusBadRequest, nil, &rpcError{Code: codeParseError, Message: "failed to read request body"})
		return
	}

	req, rpcErr := decodeRequest(body)
	if rpcErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		s.writeError(w, http.StatusOK, id, rpcErr)
		s.logger.Debug().Str("remote", remote).Int("code", rpcErr.Code).Msg(rpcErr.Message)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	result, tool, callErr := s.dispatch(ctx, req)
	s.logRequest(r, remote, req.Method, tool, start, callErr)

	if req.ID == nil {
		// Notification: no response body.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if callErr != nil {
		s.writeError(w, http.StatusOK, req.ID, toRPCError(callErr))
		return
	}
	s.writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, status int, id json.RawMessage, rpcErr *rpcError) {
	if id == nil {
		id = json.RawMessage("null")
	}
	s.writeJSON(w, status, rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) logRequest(r *http.Request, remote, method, tool string, start time.Time, err error) {
	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Str("kind", string(apperrors.CodeOf(err))).Err(err)
	}
	event.
		Str("remote", remote).
		Str("path", r.URL.Path).
		Str("method", method).
		Str("tool", tool).
		Dur("duration", time.Since(start)).
		Msg("rpc")
}

// authorized checks the bearer token in constant time. An empty configured
// token never authorizes.
func authorized(r *http.Request, token []byte) bool {
	if len(token) == 0 {
		return false
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	presented := []byte(strings.TrimSpace(header[len(prefix):]))
	return subtle.ConstantTimeCompare(presented, token) == 1
}

// clientKey identifies the caller for rate limiting by remote IP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
