package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogWriterConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	w := logWriter(Config{Format: "json"}, &buf)
	if w != &buf {
		t.Fatalf("json 格式应直接写 stdout, 实际 %T", w)
	}
}

func TestLogWriterTeesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "stratum.log")
	w := logWriter(Config{Format: "json", OutputFile: path}, &buf)

	logger := zerolog.New(w)
	logger.Info().Str("component", "test").Msg("hello")

	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("stdout 应收到日志: %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("日志文件应被创建: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("文件应收到 JSON 日志: %q", string(data))
	}
}

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "WARN"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("期望 warn 级别, 实际 %s", logger.GetLevel())
	}
}
