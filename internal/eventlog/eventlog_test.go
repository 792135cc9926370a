package eventlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in    int
		want  Level
		valid bool
	}{
		{0, LevelNone, true},
		{1, LevelInfo, true},
		{2, LevelDebug, true},
		{-1, LevelNone, false},
		{3, LevelNone, false},
	}
	for _, c := range cases {
		got, ok := ParseLevel(c.in)
		if ok != c.valid || (ok && got != c.want) {
			t.Errorf("ParseLevel(%d) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.valid)
		}
	}
}

func TestStdoutSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdout(&buf, LevelInfo)

	sink.Debugf("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("Debugf at LevelInfo wrote output: %q", buf.String())
	}

	sink.Infof("ACCEPT host=%s port=%d", "1.2.3.4", 5555)
	out := buf.String()
	if !strings.Contains(out, "ACCEPT host=1.2.3.4 port=5555") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("output not newline-terminated: %q", out)
	}
}

func TestStdoutSinkTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdout(&buf, LevelInfo)
	sink.Infof("hello")
	out := buf.String()

	// Expect "YYYY-MM-DDTHH:MM:SS.mmmZ hello\n"
	idx := strings.Index(out, " ")
	if idx < 0 {
		t.Fatalf("no space separating timestamp from message: %q", out)
	}
	ts := out[:idx]
	if !strings.HasSuffix(ts, "Z") {
		t.Fatalf("timestamp %q does not end in Z", ts)
	}
	if len(ts) != len("2006-01-02T15:04:05.000Z") {
		t.Fatalf("timestamp %q has unexpected length %d", ts, len(ts))
	}
}

func TestStdoutSinkSetLevelRaisesVerbosity(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdout(&buf, LevelNone)
	sink.Infof("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("Infof at LevelNone wrote output: %q", buf.String())
	}
	sink.SetLevel(LevelDebug)
	sink.Debugf("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("Debugf after SetLevel(LevelDebug) produced no output: %q", buf.String())
	}
}
