package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"torq.dev/core/audit"
	"torq.dev/core/metrics"
	"torq.dev/core/protocol"
	"torq.dev/core/relay"
	"torq.dev/core/validate"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// domainFlag parses one of the four relay_domain names used on the
// command line ("market-data", "signal", "execution", "system").
func domainFlag(s string) (protocol.RelayDomain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market-data", "marketdata", "md":
		return protocol.DomainMarketData, nil
	case "signal":
		return protocol.DomainSignal, nil
	case "execution", "exec":
		return protocol.DomainExecution, nil
	case "system":
		return protocol.DomainSystem, nil
	default:
		return 0, fmt.Errorf("unknown domain %q", s)
	}
}

func levelForDomain(domain protocol.RelayDomain) validate.Level {
	switch domain {
	case protocol.DomainMarketData:
		return validate.Performance
	case protocol.DomainSignal:
		return validate.Standard
	default:
		return validate.Audit
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	domainName := fs.String("domain", "market-data", "relay domain: market-data|signal|execution|system")
	socketDir := fs.String("socket-dir", "/tmp/torq", "parent directory for domain-named Unix sockets")
	metricsAddr := fs.String("metrics-addr", "", "address for a standalone /metrics listener (empty disables it)")
	auditDir := fs.String("audit-dir", "", "directory for the Audit-level bbolt record store (empty disables persistence)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	startAll := fs.Bool("all", false, "start one relay per domain instead of -domain")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logrus.New()
	log.SetOutput(stdout)
	if lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(*logLevel))); err == nil {
		log.SetLevel(lvl)
	}

	var domains []protocol.RelayDomain
	if *startAll {
		domains = []protocol.RelayDomain{
			protocol.DomainMarketData, protocol.DomainSignal,
			protocol.DomainExecution, protocol.DomainSystem,
		}
	} else {
		d, err := domainFlag(*domainName)
		if err != nil {
			fmt.Fprintf(stderr, "invalid domain: %v\n", err)
			return 2
		}
		domains = []protocol.RelayDomain{d}
	}

	if err := os.MkdirAll(*socketDir, 0o750); err != nil {
		fmt.Fprintf(stderr, "socket-dir create failed: %v\n", err)
		return 2
	}

	var sinks []*audit.Sink
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()

	engines := make([]*relay.Engine, 0, len(domains))
	for _, d := range domains {
		level := levelForDomain(d)
		cfg := relay.DefaultConfig(filepath.Join(*socketDir, socketName(d)), d, level)
		cfg.Logger = log

		if level == validate.Audit && *auditDir != "" {
			store, err := audit.OpenStore(filepath.Join(*auditDir, d.String()))
			if err != nil {
				fmt.Fprintf(stderr, "audit store open failed: %v\n", err)
				return 2
			}
			sink := audit.NewSink(store, log)
			sinks = append(sinks, sink)
			cfg.Policy.AuditLogSink = sink
		}

		if err := printConfig(stdout, d, cfg); err != nil {
			fmt.Fprintf(stderr, "config encode failed: %v\n", err)
			return 1
		}

		if *dryRun {
			continue
		}

		e, err := relay.Create(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "relay create failed for %s: %v\n", d, err)
			if errors.Is(err, relay.ErrSocketInUse) {
				return 3
			}
			return 2
		}
		engines = append(engines, e)
	}

	if *dryRun {
		return 0
	}

	if *metricsAddr != "" {
		srv := metrics.StartServer(*metricsAddr)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(engines))
	for _, e := range engines {
		go func(e *relay.Engine) { errCh <- e.Start(ctx) }(e)
	}

	fmt.Fprintln(stdout, "relay running")
	<-ctx.Done()
	for _, e := range engines {
		e.Shutdown()
	}
	for range engines {
		if err := <-errCh; err != nil {
			fmt.Fprintf(stderr, "relay exited with error: %v\n", err)
			return 4
		}
	}
	fmt.Fprintln(stdout, "relay stopped")
	return 0
}

func socketName(d protocol.RelayDomain) string {
	switch d {
	case protocol.DomainMarketData:
		return "market_data.sock"
	case protocol.DomainSignal:
		return "signals.sock"
	case protocol.DomainExecution:
		return "execution.sock"
	case protocol.DomainSystem:
		return "system.sock"
	default:
		return "unknown.sock"
	}
}

func printConfig(w io.Writer, domain protocol.RelayDomain, cfg relay.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Domain           string `json:"domain"`
		SocketPath       string `json:"socket_path"`
		Level            string `json:"level"`
		QueueCapacity    int    `json:"queue_capacity"`
		MaxPayloadBytes  int    `json:"max_payload_bytes"`
		CheckChecksum    bool   `json:"check_checksum"`
		RequiredTLVTypes []uint8 `json:"required_tlv_types,omitempty"`
	}{
		Domain:           domain.String(),
		SocketPath:       cfg.SocketPath,
		Level:            cfg.Policy.Level.String(),
		QueueCapacity:    cfg.QueueCapacity,
		MaxPayloadBytes:  cfg.Policy.MaxPayloadBytes,
		CheckChecksum:    cfg.Policy.CheckChecksum,
		RequiredTLVTypes: cfg.Policy.RequiredTLVTypes,
	})
}
