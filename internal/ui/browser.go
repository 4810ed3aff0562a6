package ui

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// OpenInBrowser opens url in the system's default browser.
func OpenInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("cannot open a browser on %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// BrowserWindow hands the UI over to the system browser. The shell cannot see
// the browser tab, so the window only closes through Close.
type BrowserWindow struct {
	// Open launches the browser; it defaults to OpenInBrowser.
	Open func(url string) error

	mu     sync.Mutex
	url    string
	shown  bool
	closed chan struct{}
	once   sync.Once
}

// NewBrowserWindow returns a hidden browser window.
func NewBrowserWindow() *BrowserWindow {
	return &BrowserWindow{Open: OpenInBrowser, closed: make(chan struct{})}
}

// BrowserFactory creates browser windows.
func BrowserFactory() (Window, error) {
	return NewBrowserWindow(), nil
}

// errWindowClosed is returned by a closed window asked to load or show.
var errWindowClosed = errors.New("window already closed")

func (w *BrowserWindow) isClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

func (w *BrowserWindow) LoadURL(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed() {
		return errWindowClosed
	}
	w.url = url
	if w.shown {
		return w.Open(url)
	}
	return nil
}

func (w *BrowserWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed() {
		return errWindowClosed
	}
	if w.shown {
		return nil
	}
	w.shown = true
	if w.url == "" {
		return nil
	}
	return w.Open(w.url)
}

func (w *BrowserWindow) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

func (w *BrowserWindow) Closed() <-chan struct{} { return w.closed }
