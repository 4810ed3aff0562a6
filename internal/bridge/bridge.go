// Package bridge is the read-only status channel between the shell and the
// presentation layer.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Channel names.
const (
	ChannelBackendStatus = "get-backend-status"
	ChannelBackendReady  = "backend-ready"
)

// Status values.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// PathPrefix is where channels are served over HTTP.
const PathPrefix = "/bridge/"

// ErrUnknownChannel is returned by Invoke for a channel the bridge does not serve.
var ErrUnknownChannel = errors.New("unknown bridge channel")

// BackendStatus is the payload of get-backend-status.
type BackendStatus struct {
	Status string `json:"status"`
	Port   int    `json:"port"`
}

// ProcessSource reports whether a service currently has a live process.
type ProcessSource interface {
	IsRunning(service string) bool
}

// ProcessSourceFunc adapts a function to ProcessSource.
type ProcessSourceFunc func(service string) bool

func (f ProcessSourceFunc) IsRunning(service string) bool { return f(service) }

// Bridge answers status queries. By default it returns a fixed descriptor;
// with a live source it reports "stopped" while the data service is down.
type Bridge struct {
	port    int
	service string
	live    ProcessSource

	mu        sync.Mutex
	nextID    int
	listeners map[int]func()
}

// New returns a bridge describing the data service on port. A nil live source
// keeps the descriptor static.
func New(port int, service string, live ProcessSource) *Bridge {
	return &Bridge{
		port:      port,
		service:   service,
		live:      live,
		listeners: make(map[int]func()),
	}
}

// GetBackendStatus returns the data service descriptor.
func (b *Bridge) GetBackendStatus() BackendStatus {
	status := StatusRunning
	if b.live != nil && !b.live.IsRunning(b.service) {
		status = StatusStopped
	}
	return BackendStatus{Status: status, Port: b.port}
}

// Invoke dispatches a query by channel name.
func (b *Bridge) Invoke(channel string) (any, error) {
	switch channel {
	case ChannelBackendStatus:
		return b.GetBackendStatus(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
}

// OnBackendReady subscribes fn to the backend-ready event and returns the
// matching remove function. The shell does not currently emit this event.
func (b *Bridge) OnBackendReady(fn func()) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// ListenerCount returns the number of backend-ready subscribers.
func (b *Bridge) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// ServeHTTP answers GET /bridge/<channel> with the channel's JSON payload.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	channel := strings.TrimPrefix(r.URL.Path, PathPrefix)
	payload, err := b.Invoke(channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(payload)
}

// Handler returns a mux serving the bridge under PathPrefix.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(PathPrefix, b)
	return mux
}

// Serve listens on addr and serves the bridge until ctx is done. An empty
// addr disables the endpoint and Serve just waits for ctx.
func (b *Bridge) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		// The bridge is optional; a busy port must not take the shell down.
		logger.Warn("status bridge disabled", zap.String("addr", addr), zap.Error(err))
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("status bridge listening", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
