package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forkcrawl/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid log level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "crawl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewWithOptions(tt.cfg, Options{Quiet: true})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.log")
	l, err := NewWithOptions(&config.LoggingConfig{Level: "info", File: path}, Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}

	l.InfoWithFields("project completed", map[string]interface{}{"project": "golang/go", "forks": 12})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if line["app"] != "forkcrawl" || line["project"] != "golang/go" {
		t.Errorf("unexpected fields: %v", line)
	}
	if id, _ := line["run_id"].(string); id == "" {
		t.Error("run_id missing")
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOptions(&config.LoggingConfig{Level: "debug"}, Options{Console: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.WithField("page", 3).Debug("page fetched")

	out := buf.String()
	if !strings.Contains(out, "page fetched") {
		t.Errorf("message missing from console output: %q", out)
	}
	if strings.Contains(out, "run_id") {
		t.Errorf("run_id should be excluded from console output: %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"str":   "value",
		"int":   42,
		"bool":  true,
		"dur":   1500 * time.Millisecond,
		"err":   errors.New("boom"),
		"slice": []string{"a", "b"},
	})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["str"] != "value" || line["int"] != float64(42) || line["bool"] != true {
		t.Errorf("scalar fields wrong: %v", line)
	}
	if line["err"] != "boom" {
		t.Errorf("error field should keep its key: %v", line)
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	child := base.WithField("project", "a/b").WithFields(map[string]interface{}{"page": 2})
	child.Info("chained")

	if !strings.Contains(buf.String(), `"project":"a/b"`) || !strings.Contains(buf.String(), `"page":2`) {
		t.Errorf("chained fields missing: %s", buf.String())
	}

	buf.Reset()
	base.Info("parent")
	if strings.Contains(buf.String(), "project") {
		t.Errorf("child fields leaked into parent: %s", buf.String())
	}
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("global info")
	WithField("credential", "token_1").Warn("rotated")
	LogRateLimit(nil, "token_2", time.Now(), 3)

	if !tl.HasMessage("global info") {
		t.Error("global Info did not reach the installed logger")
	}
	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 2 {
		t.Fatalf("expected 2 warnings, got %d:\n%s", len(warns), tl)
	}
	if warns[0].Fields["credential"] != "token_1" {
		t.Errorf("field missing: %v", warns[0].Fields)
	}
	if warns[1].Fields["rotations"] != 3 {
		t.Errorf("rate limit helper fields: %v", warns[1].Fields)
	}
}

func TestTestLoggerSharesRecord(t *testing.T) {
	tl := NewTestLogger()
	tl.WithError(errors.New("x")).Error("failed")
	tl.Info("ok")

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["error"] == nil {
		t.Error("error field not captured")
	}
	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop messages")
	}
}
