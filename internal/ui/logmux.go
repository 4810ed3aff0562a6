package ui

import (
	"bytes"
	"sync"
	"time"
)

// LogBuffer keeps the newest lines of a service's output.
type LogBuffer struct {
	lines    []string
	maxLines int
	mu       sync.RWMutex
}

// NewLogBuffer creates a buffer holding at most maxLines lines.
func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &LogBuffer{
		lines:    make([]string, 0, 64),
		maxLines: maxLines,
	}
}

// Append adds a line, dropping the oldest once full.
func (lb *LogBuffer) Append(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.lines) >= lb.maxLines {
		copy(lb.lines, lb.lines[1:])
		lb.lines = lb.lines[:len(lb.lines)-1]
	}
	lb.lines = append(lb.lines, line)
}

// GetLast returns up to the last n lines.
func (lb *LogBuffer) GetLast(n int) []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n <= 0 || n > len(lb.lines) {
		n = len(lb.lines)
	}
	result := make([]string, n)
	copy(result, lb.lines[len(lb.lines)-n:])
	return result
}

// Len returns the number of buffered lines.
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.lines)
}

// lineWriter splits a byte stream into lines and timestamps each one into a
// LogBuffer. A trailing partial line waits for its newline or Flush.
type lineWriter struct {
	mu     sync.Mutex
	dst    *LogBuffer
	buffer []byte
	now    func() time.Time
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, p...)
	for {
		i := bytes.IndexByte(w.buffer, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buffer[:i])
		w.buffer = w.buffer[i+1:]
	}
	return len(p), nil
}

// Flush writes out any partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(w.buffer)
	w.buffer = w.buffer[:0]
}

func (w *lineWriter) emit(raw []byte) {
	line := string(bytes.TrimRight(raw, "\r"))
	if line == "" {
		return
	}
	w.dst.Append("[" + w.now().Format("15:04:05") + "] " + line)
}
