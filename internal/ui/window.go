package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harshul/calcshell/internal/ports"
)

// Window is a shell window. A new window is hidden until Show.
type Window interface {
	LoadURL(url string) error
	Show() error
	Close() error
	// Closed is closed once the window has gone away, whoever closed it.
	Closed() <-chan struct{}
}

// Factory creates a hidden window.
type Factory func() (Window, error)

// Prober waits for a readiness target.
type Prober interface {
	WaitFor(ctx context.Context, target ports.Target, timeout time.Duration) ports.Result
}

// Controller owns the set of open windows. Closing windows never touches
// child processes; the OnAllClosed hook decides what happens next.
type Controller struct {
	factory Factory
	logger  *zap.Logger

	mu          sync.Mutex
	windows     []Window
	lastURL     string
	onAllClosed func()
}

// NewController returns a controller creating windows with factory.
func NewController(factory Factory, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{factory: factory, logger: logger}
}

// OnAllClosed sets the hook run when the open-window count drops to zero.
func (c *Controller) OnAllClosed(fn func()) {
	c.mu.Lock()
	c.onAllClosed = fn
	c.mu.Unlock()
}

// Create instantiates and tracks a hidden window.
func (c *Controller) Create() (Window, error) {
	w, err := c.factory()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.windows = append(c.windows, w)
	c.mu.Unlock()

	go c.watch(w)
	return w, nil
}

func (c *Controller) watch(w Window) {
	<-w.Closed()

	c.mu.Lock()
	for i, open := range c.windows {
		if open == w {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			break
		}
	}
	remaining := len(c.windows)
	hook := c.onAllClosed
	c.mu.Unlock()

	c.logger.Debug("window closed", zap.Int("open", remaining))
	if remaining == 0 && hook != nil {
		hook()
	}
}

// OpenCount returns the number of tracked windows.
func (c *Controller) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// Present waits for url to answer, then loads it into the newest window and
// shows it. The window is shown whatever the probe returns, unless ctx ended
// while waiting.
func (c *Controller) Present(ctx context.Context, url string, p Prober, timeout time.Duration) (ports.Result, error) {
	c.mu.Lock()
	c.lastURL = url
	c.mu.Unlock()

	res := p.WaitFor(ctx, ports.HTTP(url), timeout)
	if err := ctx.Err(); err != nil {
		// Shutting down; the window must not appear now.
		return res, err
	}
	if res == ports.TimedOut {
		c.logger.Warn("UI service not reachable, loading anyway", zap.String("url", url), zap.Duration("timeout", timeout))
	}

	w := c.current()
	if w == nil {
		var err error
		if w, err = c.Create(); err != nil {
			return res, err
		}
	}
	return res, show(w, url)
}

// Activate recreates a window when none is open and loads the last
// presented URL into it. It does nothing while a window is open.
func (c *Controller) Activate() error {
	if c.OpenCount() > 0 {
		return nil
	}
	w, err := c.Create()
	if err != nil {
		return err
	}

	c.mu.Lock()
	url := c.lastURL
	c.mu.Unlock()
	if url == "" {
		return nil
	}
	return show(w, url)
}

// CloseAll closes every open window.
func (c *Controller) CloseAll() error {
	c.mu.Lock()
	open := append([]Window(nil), c.windows...)
	c.mu.Unlock()

	var errs []error
	for _, w := range open {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (c *Controller) current() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.windows) == 0 {
		return nil
	}
	return c.windows[len(c.windows)-1]
}

func show(w Window, url string) error {
	if err := w.LoadURL(url); err != nil {
		return err
	}
	return w.Show()
}
