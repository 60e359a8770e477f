package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	logx "remind/pkg/logx"
)

// ServerConfig controls the JSON API listener.
type ServerConfig struct {
	Enabled bool
	Address string
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Address == "" {
		c.Address = "127.0.0.1:8743"
	}
	return c
}

// apiServer manages lifecycle for the HTTP listener.
type apiServer struct {
	mu      sync.Mutex
	log     logx.Logger
	handler http.Handler
	srv     *http.Server
	ln      net.Listener
	addr    string
}

func newAPIServer(handler http.Handler, log logx.Logger) *apiServer {
	return &apiServer{log: log, handler: handler}
}

// Apply starts/stops/rebinds the server according to cfg. Rebinding only
// happens when the address actually changed.
func (p *apiServer) Apply(ctx context.Context, cfg ServerConfig) {
	cfg = cfg.withDefaults()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !cfg.Enabled {
		p.stopLocked(ctx)
		return
	}

	if p.srv != nil && p.addr == cfg.Address {
		return
	}

	p.stopLocked(ctx)
	p.startLocked(cfg)
}

func (p *apiServer) startLocked(cfg ServerConfig) {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           p.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		p.log.Warn("api listen failed", logx.String("addr", cfg.Address), logx.Err(err))
		return
	}

	p.srv = srv
	p.ln = ln
	p.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Warn("api server error", logx.String("addr", p.addr), logx.Err(err))
		}
	}()
	p.log.Info("api listening", logx.String("addr", p.addr))
}

// Stop gracefully shuts down the server.
func (p *apiServer) Stop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked(ctx)
}

func (p *apiServer) stopLocked(ctx context.Context) {
	if p.srv == nil {
		return
	}
	srv := p.srv
	ln := p.ln
	p.srv = nil
	p.ln = nil
	addr := p.addr
	p.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.log.Warn("api shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
	p.log.Info("api stopped", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (p *apiServer) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}
