package ttsstudio

import (
	"io"
	"strings"
)

// logInterceptor implements io.Writer to capture log output for display in UI.
// Lines are stored under the model's logMu.
type logInterceptor struct {
	model    *Model
	original io.Writer // The original log output
}

func (li *logInterceptor) Write(p []byte) (n int, err error) {
	if li.model != nil && li.model.maxLogMessages > 0 {
		if msg := strings.TrimSpace(string(p)); msg != "" {
			li.model.addLogMessage(msg)
		}
	}

	// Write to the original log output (e.g., file)
	if li.original != nil {
		return li.original.Write(p)
	}
	return len(p), nil
}

func (m *Model) addLogMessage(msg string) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	logs := append(m.logMessages, msg)
	if len(logs) > m.maxLogMessages {
		logs = logs[len(logs)-m.maxLogMessages:]
	}
	m.logMessages = logs
}

// recentLogs returns a copy of the captured log lines.
func (m *Model) recentLogs() []string {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	return append([]string(nil), m.logMessages...)
}
