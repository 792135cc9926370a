package tarpit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kstaniek/endlessh-go/internal/eventlog"
)

type recordingSink struct {
	lines []string
}

func (s *recordingSink) Infof(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}
func (s *recordingSink) Debugf(format string, args ...any) {}
func (s *recordingSink) SetLevel(eventlog.Level)           {}

func TestDefaultConfigMatchesOriginalDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.Port != 2222 {
		t.Errorf("Port = %d, want 2222", c.Port)
	}
	if c.DelayMS != 10000 {
		t.Errorf("DelayMS = %d, want 10000", c.DelayMS)
	}
	if c.MaxLineLength != 32 {
		t.Errorf("MaxLineLength = %d, want 32", c.MaxLineLength)
	}
	if c.MaxClients != 4096 {
		t.Errorf("MaxClients = %d, want 4096", c.MaxClients)
	}
	if c.BindFamily != BindDual {
		t.Errorf("BindFamily = %v, want BindDual", c.BindFamily)
	}
}

func TestSettersRejectOutOfRangeValues(t *testing.T) {
	c := DefaultConfig()
	if err := c.SetPort("0"); err == nil {
		t.Error("SetPort(0) should fail")
	}
	if err := c.SetPort("70000"); err == nil {
		t.Error("SetPort(70000) should fail")
	}
	if err := c.SetMaxLineLength("2"); err == nil {
		t.Error("SetMaxLineLength(2) should fail: minimum is 3")
	}
	if err := c.SetMaxLineLength("256"); err == nil {
		t.Error("SetMaxLineLength(256) should fail: maximum is 255")
	}
	if err := c.SetBindFamily("9"); err == nil {
		t.Error("SetBindFamily(9) should fail")
	}
	if err := c.SetPort("2022"); err != nil {
		t.Errorf("SetPort(2022) should succeed: %v", err)
	}
	if c.Port != 2022 {
		t.Errorf("Port = %d, want 2022", c.Port)
	}
}

func TestBindFamilyString(t *testing.T) {
	cases := map[BindFamily]string{
		BindDual: "IPv4 Mapped IPv6",
		BindV4:   "IPv4 Only",
		BindV6:   "IPv6 Only",
	}
	for f, want := range cases {
		if got := f.String(); got != want {
			t.Errorf("BindFamily(%d).String() = %q, want %q", f, got, want)
		}
	}
}

func TestConfigLoadParsesGrammar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	body := "" +
		"# a comment line\n" +
		"\n" +
		"Port 2022\n" +
		"Delay 5000 # trailing comment\n" +
		"MaxClients 10\n" +
		"BindFamily 6\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := DefaultConfig()
	if err := c.Load(path, true, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != 2022 {
		t.Errorf("Port = %d, want 2022", c.Port)
	}
	if c.DelayMS != 5000 {
		t.Errorf("DelayMS = %d, want 5000", c.DelayMS)
	}
	if c.MaxClients != 10 {
		t.Errorf("MaxClients = %d, want 10", c.MaxClients)
	}
	if c.MaxLineLength != DefaultMaxLineLength {
		t.Errorf("MaxLineLength = %d, want untouched default %d", c.MaxLineLength, DefaultMaxLineLength)
	}
	if c.BindFamily != BindV6 {
		t.Errorf("BindFamily = %v, want BindV6", c.BindFamily)
	}
}

func TestConfigLoadMissingFileIsNotAnError(t *testing.T) {
	c := DefaultConfig()
	if err := c.Load(filepath.Join(t.TempDir(), "missing"), true, nil); err != nil {
		t.Fatalf("Load of a missing file should not error, got: %v", err)
	}
}

func TestConfigLoadSoftFailKeepsGoingOnBadLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	body := "Port notanumber\nDelay 123\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := DefaultConfig()
	var warnings []string
	if err := c.Load(path, false, func(msg string) { warnings = append(warnings, msg) }); err != nil {
		t.Fatalf("Load with hardFail=false should not return an error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if c.Port != DefaultPort {
		t.Errorf("Port = %d, want untouched default %d after a bad value", c.Port, DefaultPort)
	}
	if c.DelayMS != 123 {
		t.Errorf("DelayMS = %d, want 123 (valid line after the bad one)", c.DelayMS)
	}
}

func TestConfigLoadUnknownKeyWarnsButDoesNotHardFail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("NotAKey 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c := DefaultConfig()
	var warnings []string
	if err := c.Load(path, true, func(msg string) { warnings = append(warnings, msg) }); err != nil {
		t.Fatalf("unknown key should not hard-fail: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestConfigLogEmitsFiveLines(t *testing.T) {
	c := DefaultConfig()
	sink := &recordingSink{}
	c.Log(sink)
	if len(sink.lines) != 5 {
		t.Fatalf("Log emitted %d lines, want 5: %v", len(sink.lines), sink.lines)
	}
}
