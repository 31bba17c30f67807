package runner

import (
	"bytes"
	"io"
	"sync"
)

const (
	streamStdout = iota
	streamStderr
)

// capture accumulates child output. Both streams append to one merged buffer
// under a single lock, so chunks land in arrival order.
type capture struct {
	mu      sync.Mutex
	all     bytes.Buffer
	streams [2]bytes.Buffer
}

func newCapture() *capture {
	return &capture{}
}

// writer returns the io.Writer for one stream. The two writers are distinct
// values so os/exec copies each pipe on its own goroutine.
func (c *capture) writer(stream int) io.Writer {
	return &streamWriter{c: c, stream: stream}
}

func (c *capture) merged() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all.String()
}

func (c *capture) stream(stream int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[stream].String()
}

type streamWriter struct {
	c      *capture
	stream int
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.all.Write(p)
	w.c.streams[w.stream].Write(p)
	return len(p), nil
}
