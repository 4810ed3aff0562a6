package ports

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastProber() *Prober {
	p := NewProber()
	p.Interval = 20 * time.Millisecond
	return p
}

// closedPort returns a port that nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Target
		wantErr bool
	}{
		{name: "tcp", in: "tcp:127.0.0.1:8000", want: TCP("127.0.0.1", 8000)},
		{name: "tcp default host", in: "tcp::8000", want: TCP("127.0.0.1", 8000)},
		{name: "http", in: "http://localhost:3000", want: HTTP("http://localhost:3000")},
		{name: "bad port", in: "tcp:localhost:99999", wantErr: true},
		{name: "unknown scheme", in: "ftp://example", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "tcp:127.0.0.1:8000", TCP("127.0.0.1", 8000).String())
	assert.Equal(t, "http://localhost:3000", HTTP("http://localhost:3000").String())
}

func TestWaitForTCPReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	res := fastProber().WaitFor(context.Background(), TCP("127.0.0.1", port), time.Second)
	assert.Equal(t, Ready, res)
}

func TestWaitForTCPBecomesReady(t *testing.T) {
	port := closedPort(t)

	go func() {
		time.Sleep(100 * time.Millisecond)
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			return
		}
		time.Sleep(time.Second)
		ln.Close()
	}()

	res := fastProber().WaitFor(context.Background(), TCP("127.0.0.1", port), 2*time.Second)
	assert.Equal(t, Ready, res)
}

func TestWaitForTimesOutWithinBound(t *testing.T) {
	port := closedPort(t)
	timeout := 200 * time.Millisecond

	start := time.Now()
	res := fastProber().WaitFor(context.Background(), TCP("127.0.0.1", port), timeout)
	elapsed := time.Since(start)

	assert.Equal(t, TimedOut, res)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+250*time.Millisecond)
}

func TestWaitForHTTPAnyResponse(t *testing.T) {
	// A 500 still proves the server is up.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := fastProber().WaitFor(context.Background(), HTTP(srv.URL), time.Second)
	assert.Equal(t, Ready, res)
}

func TestWaitForHTTPUnreachable(t *testing.T) {
	port := closedPort(t)
	res := fastProber().WaitFor(context.Background(), HTTP("http://127.0.0.1:"+strconv.Itoa(port)), 150*time.Millisecond)
	assert.Equal(t, TimedOut, res)
}

func TestWaitForCancelledContext(t *testing.T) {
	port := closedPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := fastProber().WaitFor(ctx, TCP("127.0.0.1", port), 5*time.Second)
	assert.Equal(t, TimedOut, res)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForZeroTarget(t *testing.T) {
	assert.Equal(t, TimedOut, fastProber().WaitFor(context.Background(), Target{}, time.Second))
}
