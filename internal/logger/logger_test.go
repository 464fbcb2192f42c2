package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	return &Logger{zlog: zlog}, &buf
}

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			log := New(env)
			if log == nil {
				t.Fatal("Expected logger to be created")
			}
			if log.GetZerolog() == nil {
				t.Error("Expected zerolog instance to be available")
			}
		})
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	if log == nil {
		t.Fatal("Expected logger to be created")
	}
	// must not panic
	log.Info("discarded", map[string]interface{}{"key": "value"})
	log.Error("discarded", errors.New("boom"), nil)
}

func TestDebug(t *testing.T) {
	log, buf := newBufferLogger()

	log.Debug("debug message", map[string]interface{}{
		"area":  "siltara",
		"count": 42,
	})

	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "siltara") {
		t.Error("Expected log output to contain field value")
	}
}

func TestInfo(t *testing.T) {
	log, buf := newBufferLogger()

	log.Info("info message", map[string]interface{}{
		"parcels": 17,
		"source":  "detected",
	})

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "detected") {
		t.Error("Expected log output to contain source field")
	}
}

func TestWarn(t *testing.T) {
	log, buf := newBufferLogger()

	log.Warn("warning message", map[string]interface{}{
		"warning_type": "degraded_mask",
	})

	output := buf.String()
	if !strings.Contains(output, "warning message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "degraded_mask") {
		t.Error("Expected log output to contain warning_type field")
	}
}

func TestError(t *testing.T) {
	log, buf := newBufferLogger()

	testErr := errors.New("test error")
	log.Error("error occurred", testErr, map[string]interface{}{
		"context": "database",
	})

	output := buf.String()
	if !strings.Contains(output, "error occurred") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "test error") {
		t.Error("Expected log output to contain error message")
	}
	if !strings.Contains(output, "database") {
		t.Error("Expected log output to contain context field")
	}
}

func TestWith(t *testing.T) {
	log, buf := newBufferLogger()

	child := log.With(map[string]interface{}{
		"component": "pipeline",
		"version":   "0.1",
	})

	child.Info("test message", nil)

	output := buf.String()
	if !strings.Contains(output, "pipeline") {
		t.Error("Expected log output to contain component field from context")
	}
	if !strings.Contains(output, "0.1") {
		t.Error("Expected log output to contain version field from context")
	}
}

func TestWithRequestID(t *testing.T) {
	log, buf := newBufferLogger()

	requestID := "req-12345"
	child := log.WithRequestID(requestID)

	child.Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, requestID) {
		t.Error("Expected log output to contain request ID")
	}
	if !strings.Contains(output, "request_id") {
		t.Error("Expected log output to have request_id field")
	}
}

func TestLogLevels_Production(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	log := &Logger{zlog: zlog}

	log.Debug("debug message", nil)
	debugOutput := buf.String()

	buf.Reset()

	log.Info("info message", nil)
	infoOutput := buf.String()

	if strings.Contains(debugOutput, "debug message") {
		t.Error("Debug message should not appear at info level")
	}
	if !strings.Contains(infoOutput, "info message") {
		t.Error("Info message should appear at info level")
	}
}

func TestJSONOutput(t *testing.T) {
	log, buf := newBufferLogger()

	log.Info("test json", map[string]interface{}{
		"key": "value",
	})

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Errorf("Expected valid JSON output, got error: %v", err)
	}
	if logEntry["message"] != "test json" {
		t.Error("Expected JSON to contain message field")
	}
}

func TestNilFields(t *testing.T) {
	log, buf := newBufferLogger()

	log.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}
