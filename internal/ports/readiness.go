package ports

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is how often WaitFor retries an unreachable target.
const DefaultInterval = 250 * time.Millisecond

// TargetKind tags the variant held by a Target.
type TargetKind int

const (
	TargetTCP TargetKind = iota + 1
	TargetHTTP
)

// Target is something WaitFor can poll: a TCP host+port or an HTTP URL.
type Target struct {
	Kind TargetKind
	Host string
	Port int
	URL  string
}

// TCP returns a target that is ready once a TCP connect succeeds.
func TCP(host string, port int) Target {
	return Target{Kind: TargetTCP, Host: host, Port: port}
}

// HTTP returns a target that is ready once any HTTP response comes back.
func HTTP(rawURL string) Target {
	return Target{Kind: TargetHTTP, URL: rawURL}
}

// ParseTarget accepts "tcp:host:port" or an http(s) URL.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "tcp:"):
		host, portStr, err := net.SplitHostPort(strings.TrimPrefix(s, "tcp:"))
		if err != nil {
			return Target{}, fmt.Errorf("invalid tcp target %q: %w", s, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, fmt.Errorf("invalid port in tcp target %q", s)
		}
		if host == "" {
			host = "127.0.0.1"
		}
		return TCP(host, port), nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		if _, err := url.Parse(s); err != nil {
			return Target{}, fmt.Errorf("invalid http target %q: %w", s, err)
		}
		return HTTP(s), nil
	}
	return Target{}, fmt.Errorf("unsupported readiness target %q (want tcp:host:port or http://...)", s)
}

// Address returns the dialable host:port for TCP targets.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String renders the target in the same syntax ParseTarget accepts.
func (t Target) String() string {
	switch t.Kind {
	case TargetTCP:
		return "tcp:" + t.Address()
	case TargetHTTP:
		return t.URL
	default:
		return "<none>"
	}
}

// IsZero reports whether the target was never set.
func (t Target) IsZero() bool {
	return t.Kind == 0
}

// Result is the outcome of a WaitFor call.
type Result int

const (
	Ready Result = iota + 1
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Prober polls readiness targets at a fixed interval.
type Prober struct {
	Interval time.Duration
	// Client is used for HTTP targets. Redirects are not followed: any response counts.
	Client *http.Client
}

// NewProber creates a prober with the default interval.
func NewProber() *Prober {
	return &Prober{
		Interval: DefaultInterval,
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// WaitFor polls target until it responds or timeout elapses, whichever comes
// first. It never returns an error; a cancelled ctx reports TimedOut. Every
// attempt is bounded by the time left, so the call returns within timeout plus
// a small scheduling slack.
func (p *Prober) WaitFor(ctx context.Context, target Target, timeout time.Duration) Result {
	if target.IsZero() {
		return TimedOut
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.attempt(ctx, target, interval) {
			return Ready
		}
		select {
		case <-ctx.Done():
			return TimedOut
		case <-ticker.C:
		}
	}
}

// attempt makes one bounded reachability check.
func (p *Prober) attempt(ctx context.Context, target Target, interval time.Duration) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, 4*interval)
	defer cancel()

	switch target.Kind {
	case TargetTCP:
		var d net.Dialer
		conn, err := d.DialContext(attemptCtx, "tcp", target.Address())
		if err != nil {
			return false
		}
		conn.Close()
		return true

	case TargetHTTP:
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target.URL, nil)
		if err != nil {
			return false
		}
		client := p.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
	return false
}
