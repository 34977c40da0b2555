package api

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"
)

// testLogWriter redirects log output to testing.T.Logf
type testLogWriter struct {
	t      *testing.T
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (w *testLogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.buffer.Write(p)
	for {
		line, err := w.buffer.ReadString('\n')
		if err != nil {
			// Put back what we couldn't read as a complete line
			if len(line) > 0 {
				w.buffer.WriteString(line)
			}
			break
		}
		line = strings.TrimSuffix(line, "\n")
		if line != "" {
			w.t.Logf("%s", line)
		}
	}
	return n, nil
}

// setupTestLogging redirects the standard logger to t.Logf until the test ends.
func setupTestLogging(t *testing.T) {
	t.Helper()
	originalOutput := log.Writer()
	originalFlags := log.Flags()

	w := &testLogWriter{t: t}
	log.SetOutput(w)
	log.SetFlags(log.Lshortfile)

	t.Cleanup(func() {
		w.mu.Lock()
		if w.buffer.Len() > 0 {
			t.Logf("%s", w.buffer.String())
		}
		w.mu.Unlock()
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	})
}
