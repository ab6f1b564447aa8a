// Package obs carries the console's logging and metrics: one JSON object per
// log line and a prometheus registry shared by the server and client.
package obs

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger. Flags are cleared so each line is
// exactly one JSON document.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// SetOutput redirects log lines and returns a func restoring the previous
// writer. The CLI sends logs to stderr so stdout stays for command output.
func SetOutput(w io.Writer) (restore func()) {
	l := Logger()
	prev := l.Writer()
	l.SetOutput(w)
	return func() { l.SetOutput(prev) }
}

// Log writes one line with ts, level and msg set over fields. Caller keys
// named ts, level or msg are overwritten.
func Log(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]any{
			"ts":    entry["ts"],
			"level": "error",
			"msg":   "log marshal failed",
			"event": msg,
			"error": err.Error(),
		})
	}
	Logger().Println(string(data))
}

func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }
