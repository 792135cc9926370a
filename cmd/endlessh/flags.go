package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/kstaniek/endlessh-go/internal/tarpit"
)

const defaultConfigFile = "/etc/endlessh/config"

// verbosity implements flag.Value so -v can be repeated, incrementing the
// level once per occurrence and clamping at debug.
type verbosity struct{ n int }

func (v *verbosity) String() string { return strconv.Itoa(v.n) }
func (v *verbosity) Set(string) error {
	if v.n < 2 {
		v.n++
	}
	return nil
}
func (v *verbosity) IsBoolFlag() bool { return true }

// appConfig bundles the parsed tarpit.Config with the process-level flags
// that aren't part of the tarpit's own reloadable configuration: which
// config file to (re)load, whether to log to syslog, and the
// metrics/mDNS domain-stack wiring.
type appConfig struct {
	cfg        tarpit.Config
	configFile string
	useSyslog  bool
	verbosity  int

	showVersion bool
	showHelp    bool

	metricsAddr     string
	mdnsEnable      bool
	logMetricsEvery time.Duration
}

// parseFlags loads the config file, then applies every flag the caller
// explicitly set on top of it: flags always win over the file.
func parseFlags(args []string) (*appConfig, error) {
	fs := flag.NewFlagSet("endlessh", flag.ContinueOnError)
	fs.Usage = func() { usage(fs.Output()) }

	out := &appConfig{cfg: tarpit.DefaultConfig(), configFile: defaultConfigFile}

	bind4 := fs.Bool("4", false, "Bind to IPv4 only")
	bind6 := fs.Bool("6", false, "Bind to IPv6 only")
	delay := fs.Int("d", tarpit.DefaultDelayMS, fmt.Sprintf("Message millisecond delay [%d]", tarpit.DefaultDelayMS))
	configFile := fs.String("f", "", fmt.Sprintf("Set and load config file [%s]", defaultConfigFile))
	help := fs.Bool("h", false, "Print this help message and exit")
	lineLen := fs.Int("l", tarpit.DefaultMaxLineLength, fmt.Sprintf("Maximum banner line length (3-255) [%d]", tarpit.DefaultMaxLineLength))
	maxClients := fs.Int("m", tarpit.DefaultMaxClients, fmt.Sprintf("Maximum number of clients [%d]", tarpit.DefaultMaxClients))
	port := fs.Int("p", tarpit.DefaultPort, fmt.Sprintf("Listening port [%d]", tarpit.DefaultPort))
	useSyslog := fs.Bool("s", false, "Print diagnostics to syslog")
	var v verbosity
	fs.Var(&v, "v", "Print diagnostics to standard output (repeatable)")
	showVersion := fs.Bool("V", false, "Print version information and exit")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus /metrics and /ready on ADDR; empty disables")
	mdnsEnable := fs.Bool("mdns-enable", false, "Advertise the metrics endpoint (never the trap port) via mDNS")
	logMetricsEvery := fs.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("endlessh: too many arguments")
	}

	if *help {
		out.showHelp = true
		return out, nil
	}
	if *showVersion {
		out.showVersion = true
		return out, nil
	}

	if *configFile != "" {
		out.configFile = *configFile
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "endlessh: "+msg) }
	if err := out.cfg.Load(out.configFile, true, warn); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["4"] && *bind4 {
		_ = out.cfg.SetBindFamily("4")
	}
	if set["6"] && *bind6 {
		_ = out.cfg.SetBindFamily("6")
	}
	if set["d"] {
		if err := out.cfg.SetDelay(strconv.Itoa(*delay)); err != nil {
			return nil, err
		}
	}
	if set["l"] {
		if err := out.cfg.SetMaxLineLength(strconv.Itoa(*lineLen)); err != nil {
			return nil, err
		}
	}
	if set["m"] {
		if err := out.cfg.SetMaxClients(strconv.Itoa(*maxClients)); err != nil {
			return nil, err
		}
	}
	if set["p"] {
		if err := out.cfg.SetPort(strconv.Itoa(*port)); err != nil {
			return nil, err
		}
	}

	out.useSyslog = *useSyslog
	out.verbosity = v.n
	out.metricsAddr = *metricsAddr
	out.mdnsEnable = *mdnsEnable
	out.logMetricsEvery = *logMetricsEvery
	return out, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: endlessh [-vh] [-46] [-d MS] [-f CONFIG] [-l LEN] [-m LIMIT] [-p PORT]")
	fmt.Fprintln(w, "  -4               Bind to IPv4 only")
	fmt.Fprintln(w, "  -6               Bind to IPv6 only")
	fmt.Fprintf(w, "  -d INT           Message millisecond delay [%d]\n", tarpit.DefaultDelayMS)
	fmt.Fprintf(w, "  -f FILE          Set and load config file [%s]\n", defaultConfigFile)
	fmt.Fprintln(w, "  -h               Print this help message and exit")
	fmt.Fprintf(w, "  -l INT           Maximum banner line length (3-255) [%d]\n", tarpit.DefaultMaxLineLength)
	fmt.Fprintf(w, "  -m INT           Maximum number of clients [%d]\n", tarpit.DefaultMaxClients)
	fmt.Fprintf(w, "  -p INT           Listening port [%d]\n", tarpit.DefaultPort)
	fmt.Fprintln(w, "  -s               Print diagnostics to syslog")
	fmt.Fprintln(w, "  -v               Print diagnostics to standard output (repeatable)")
	fmt.Fprintln(w, "  -V               Print version information and exit")
	fmt.Fprintln(w, "  -metrics-addr ADDR   Serve Prometheus metrics and readiness on ADDR")
	fmt.Fprintln(w, "  -mdns-enable         Advertise the metrics endpoint via mDNS")
	fmt.Fprintln(w, "  -log-metrics-interval DUR   If >0, periodically log metrics counters")
}
