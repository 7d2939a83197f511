package log

import (
	"testing"
)

type testLogger struct {
	entries []string
	fields  []map[string]any
}

func (l *testLogger) record(level string, f map[string]any, msg string) {
	l.entries = append(l.entries, level+":"+msg)
	l.fields = append(l.fields, f)
}

func (l *testLogger) Info(f map[string]any, msg string)  { l.record("INFO", f, msg) }
func (l *testLogger) Error(f map[string]any, msg string) { l.record("ERROR", f, msg) }
func (l *testLogger) Debug(f map[string]any, msg string) { l.record("DEBUG", f, msg) }
func (l *testLogger) Warn(f map[string]any, msg string)  { l.record("WARN", f, msg) }
func (l *testLogger) Panic(map[string]any, string)       {}
func (l *testLogger) Fatal(map[string]any, string)       {}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"package": "com.example.app",
		"count":   2,
		"root":    true,
	}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}
	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestWith_MergesFields(t *testing.T) {
	tlog := &testLogger{}
	l := With(tlog, map[string]any{"package": "pkg", "op": "apply"})
	l.Warn(map[string]any{"op": "revert", "command": "x"}, "bound")

	if len(tlog.fields) != 1 {
		t.Fatalf("expected one entry, got %d", len(tlog.fields))
	}
	got := tlog.fields[0]
	if got["package"] != "pkg" || got["op"] != "revert" || got["command"] != "x" {
		t.Fatalf("unexpected merged fields: %v", got)
	}
}

func TestWith_EmptyFieldsReturnsSameLogger(t *testing.T) {
	tlog := &testLogger{}
	if With(tlog, nil) != Logger(tlog) {
		t.Fatalf("With(nil) should return the original logger")
	}
}

func TestWith_ZapLogger(t *testing.T) {
	l := With(newZapLogger(false, -1), map[string]any{"package": "pkg"})
	if _, ok := l.(*zapLogger); !ok {
		t.Fatalf("expected zap logger to stay a zap logger, got %T", l)
	}
	l.Debug(map[string]any{"k": "v"}, "bound zap debug")
}

func TestConfigure_ValidLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Configure("prod", "info"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "notalevel"); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestNoopLogger_TestAllLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
}
