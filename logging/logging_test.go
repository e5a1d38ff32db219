package logging

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	lg := New()
	var buf bytes.Buffer
	lg.l.SetOutput(&buf)
	return lg, &buf
}

func TestRecordIncludesTaggedFields(t *testing.T) {
	lg, buf := newTestLogger()
	lg.Record(KindHashError, 42, "disk0", "a/b.bin", nil)

	out := buf.String()
	for _, want := range []string{"kind=hash_error", "stripe=42", "disk=disk0", "sub=a/b.bin"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestRecordMergesExtraFields(t *testing.T) {
	lg, buf := newTestLogger()
	lg.Record(KindError, 1, "disk0", "f", map[string]interface{}{"error": "boom"})

	if !strings.Contains(buf.String(), `error=boom`) {
		t.Errorf("log line %q missing extra field", buf.String())
	}
}

func TestStatusEmitsKindStatus(t *testing.T) {
	lg, buf := newTestLogger()
	lg.Status(7, StatusRecovered)

	out := buf.String()
	if !strings.Contains(out, "kind=status") || !strings.Contains(out, "status=recovered") {
		t.Errorf("unexpected status line: %q", out)
	}
}
