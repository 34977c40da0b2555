package helpers

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// --- Audio Tracing ---
var audioTraceEnabled int32 // Use atomic for safe check across goroutines

func init() {
	if os.Getenv("TTSSTUDIO_AUDIO_TRACE") == "1" {
		atomic.StoreInt32(&audioTraceEnabled, 1)
		log.Println("--- Detailed audio pipeline tracing enabled (TTSSTUDIO_AUDIO_TRACE=1) ---")
	}
}

// IsAudioTraceEnabled checks if detailed audio tracing is enabled via environment variable.
func IsAudioTraceEnabled() bool {
	return atomic.LoadInt32(&audioTraceEnabled) == 1
}

// SetAudioTrace turns detailed audio tracing on or off.
func SetAudioTrace(on bool) {
	var v int32
	if on {
		v = 1
	}
	atomic.StoreInt32(&audioTraceEnabled, v)
}

// RedactKey masks all but the last four characters of an API key.
func RedactKey(key string) string {
	if key == "" {
		return "(none)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 4) + key[len(key)-4:]
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
