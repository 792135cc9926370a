package tarpit

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kstaniek/endlessh-go/internal/eventlog"
)

// BindFamily selects which address family the listener binds to.
type BindFamily int

const (
	BindDual BindFamily = iota // AF_UNSPEC: IPv6 socket, dual-stack via mapped IPv4
	BindV4                     // AF_INET
	BindV6                     // AF_INET6, V6ONLY
)

// String is the label used in the BindFamily config-change log line.
func (f BindFamily) String() string {
	switch f {
	case BindV4:
		return "IPv4 Only"
	case BindV6:
		return "IPv6 Only"
	default:
		return "IPv4 Mapped IPv6"
	}
}

const (
	DefaultPort          = 2222
	DefaultDelayMS       = 10000
	DefaultMaxLineLength = 32
	DefaultMaxClients    = 4096
)

// Config holds every tunable the tarpit reads at startup and may reload on
// SIGHUP. It carries no mutex: it is owned exclusively by the event-loop
// goroutine, which is the only thing ever permitted to call its setters.
type Config struct {
	Port          int
	DelayMS       int
	MaxLineLength int
	MaxClients    int
	BindFamily    BindFamily
	LogLevel      eventlog.Level
}

// DefaultConfig returns the stock configuration: dual-stack on 2222, a ten
// second drip, 32-byte lines, 4096 clients.
func DefaultConfig() Config {
	return Config{
		Port:          DefaultPort,
		DelayMS:       DefaultDelayMS,
		MaxLineLength: DefaultMaxLineLength,
		MaxClients:    DefaultMaxClients,
		BindFamily:    BindDual,
		LogLevel:      eventlog.LevelNone,
	}
}

func (c *Config) SetPort(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 65535 {
		return fmt.Errorf("invalid port: %q", s)
	}
	c.Port = v
	return nil
}

func (c *Config) SetDelay(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return fmt.Errorf("invalid delay: %q", s)
	}
	c.DelayMS = v
	return nil
}

func (c *Config) SetMaxLineLength(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 3 || v > 255 {
		return fmt.Errorf("invalid line length: %q", s)
	}
	c.MaxLineLength = v
	return nil
}

func (c *Config) SetMaxClients(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return fmt.Errorf("invalid max clients: %q", s)
	}
	c.MaxClients = v
	return nil
}

// SetBindFamily accepts "4", "6" or "0" (dual-stack), the single-character
// grammar shared by the -4/-6 flags and the BindFamily config key.
func (c *Config) SetBindFamily(s string) error {
	if len(s) == 0 {
		return fmt.Errorf("invalid address family: %q", s)
	}
	switch s[0] {
	case '4':
		c.BindFamily = BindV4
	case '6':
		c.BindFamily = BindV6
	case '0':
		c.BindFamily = BindDual
	default:
		return fmt.Errorf("invalid address family: %q", s)
	}
	return nil
}

func (c *Config) SetLogLevel(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid log level: %q", s)
	}
	lvl, ok := eventlog.ParseLevel(v)
	if !ok {
		return fmt.Errorf("invalid log level: %q", s)
	}
	c.LogLevel = lvl
	return nil
}

// configKeys maps the file grammar's key tokens to their setters.
var configKeys = map[string]func(*Config, string) error{
	"Port":          (*Config).SetPort,
	"Delay":         (*Config).SetDelay,
	"MaxLineLength": (*Config).SetMaxLineLength,
	"MaxClients":    (*Config).SetMaxClients,
	"BindFamily":    (*Config).SetBindFamily,
	"LogLevel":      (*Config).SetLogLevel,
}

// Load reads a "Key Value" config file: '#' starts a comment, blank lines
// are skipped, and unknown keys and malformed lines are reported to warn.
// Malformed lines and invalid values are fatal if hardFail is set (the
// caller decides: true at startup, false on a SIGHUP reload so a bad edit
// doesn't kill a running tarpit); unknown keys are never fatal. A missing
// file is not an error: the server runs with defaults when no config file
// exists.
func (c *Config) Load(path string, hardFail bool, warn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	report := func(lineno int, format string, args ...any) error {
		msg := fmt.Sprintf("%s:%d: "+format, append([]any{path, lineno}, args...)...)
		if warn != nil {
			warn(msg)
		}
		if hardFail {
			return fmt.Errorf("%s", msg)
		}
		return nil
	}

	lineno := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 1:
			if err := report(lineno, "missing value"); err != nil {
				return err
			}
			continue
		case 2:
			// expected
		default:
			if err := report(lineno, "too many values"); err != nil {
				return err
			}
			continue
		}

		setter, ok := configKeys[fields[0]]
		if !ok {
			// Unknown keys only warn, even at startup: an old binary must
			// keep working against a config written for a newer one.
			if warn != nil {
				warn(fmt.Sprintf("%s:%d: unknown option %q", path, lineno, fields[0]))
			}
			continue
		}
		if err := setter(c, fields[1]); err != nil {
			if rerr := report(lineno, "%s", err); rerr != nil {
				return rerr
			}
		}
	}
	return scanner.Err()
}

// Log emits one line per setting through an eventlog.Sink so it goes
// wherever operator-facing lines go (stdout or syslog), not through the
// ambient slog diagnostics logger.
func (c *Config) Log(sink eventlog.Sink) {
	sink.Infof("Port %d", c.Port)
	sink.Infof("Delay %d", c.DelayMS)
	sink.Infof("MaxLineLength %d", c.MaxLineLength)
	sink.Infof("MaxClients %d", c.MaxClients)
	sink.Infof("BindFamily %s", c.BindFamily)
}
