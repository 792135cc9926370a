package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kstaniek/endlessh-go/internal/eventlog"
	"github.com/kstaniek/endlessh-go/internal/metrics"
	"github.com/kstaniek/endlessh-go/internal/signals"
	"github.com/kstaniek/endlessh-go/internal/tarpit"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if app.showHelp {
		usage(os.Stdout)
		return 0
	}
	if app.showVersion {
		fmt.Printf("Endlessh %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	sink, err := newEventSink(app, "endlessh")
	if err != nil {
		fmt.Fprintln(os.Stderr, "endlessh: fatal:", err)
		return 1
	}
	defer eventlog.Close(sink)

	diag := setupDiagnostics(app)
	app.cfg.Log(sink)

	listener, err := tarpit.NewListener(app.cfg.Port, app.cfg.BindFamily)
	if err != nil {
		fmt.Fprintln(os.Stderr, "endlessh: fatal:", err)
		return 1
	}

	waker, err := tarpit.NewWaker()
	if err != nil {
		fmt.Fprintln(os.Stderr, "endlessh: fatal:", err)
		return 1
	}
	defer waker.Close()

	latch := signals.NewLatch()
	stopSignals := signals.Watch(latch, waker.Wake)
	defer stopSignals()

	hooks := &tarpit.Hooks{
		OnAccept: metrics.IncConnect,
		OnAcceptError: func(a tarpit.AcceptAction) {
			switch a {
			case tarpit.AcceptClamp:
				metrics.IncAcceptError(metrics.ActionClamp)
			case tarpit.AcceptWarnContinue:
				metrics.IncAcceptError(metrics.ActionWarn)
			default:
				metrics.IncAcceptError(metrics.ActionFatal)
			}
		},
		OnClose: func(elapsedMS, bytesSent int64) {
			metrics.AddClientSeconds(elapsedMS)
		},
		OnBytesSent: metrics.AddBytesSent,
		OnReload:    metrics.IncReload,
		OnRebind:    metrics.IncRebind,
		OnClamp:     func(n int) { metrics.SetMaxClients(n) },
		OnFIFOLen:   metrics.SetActiveClients,
	}

	loop := tarpit.NewLoop(app.cfg, app.configFile, listener, waker, latch, sink, hooks)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsLogger(ctx, app.logMetricsEvery, diag, &wg)

	var metricsSrv interface{ Shutdown(context.Context) error }
	if app.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetMaxClients(app.cfg.MaxClients)
		metrics.SetReadinessFunc(func() bool { return true })
		metricsSrv = metrics.StartHTTP(app.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

		if app.mdnsEnable {
			if port, perr := portFromAddr(app.metricsAddr); perr == nil {
				cleanup, merr := startMDNS(ctx, port)
				if merr != nil {
					fmt.Fprintln(os.Stderr, "endlessh: warning: mdns:", merr)
				} else {
					defer cleanup()
				}
			}
		}
	}

	if err := loop.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "endlessh: fatal:", err)
		return 1
	}
	return 0
}
