// Command pingpong runs one node of a two-process ping/pong exchange.
//
// Start two copies pointing at each other:
//
//	pingpong -listen 127.0.0.1:7000 -peer 127.0.0.1:7001
//	pingpong -listen 127.0.0.1:7001 -peer 127.0.0.1:7000
//
// Each sends a Ping every interval and answers every Ping with a Pong.
// Flags may also be given as PINGPONG_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/internal/tick"
	"github.com/momentics/hioload-netevent/netevent"
)

type flags struct {
	config      string
	name        string
	listen      string
	peers       string
	interval    time.Duration
	tick        time.Duration
	logLevel    string
	metricsAddr string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("pingpong", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "YAML node configuration; flags below override it")
	fs.StringVar(&f.name, "name", "", "name put in outgoing pings (default: listen address)")
	fs.StringVar(&f.listen, "listen", "", "local UDP address, replaces configured sockets")
	fs.StringVar(&f.peers, "peer", "", "comma-separated peer addresses")
	fs.DurationVar(&f.interval, "interval", time.Second, "ping period")
	fs.DurationVar(&f.tick, "tick", 0, "tick period (default from config)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (default from config)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("PINGPONG")); err != nil {
		return flags{}, err
	}
	if f.interval <= 0 {
		return flags{}, fmt.Errorf("-interval must be positive")
	}
	return f, nil
}

func loadConfig(f flags) (control.Config, error) {
	cfg := control.Default()
	if f.config != "" {
		var err error
		if cfg, err = control.LoadConfig(f.config); err != nil {
			return control.Config{}, err
		}
	}
	if f.listen != "" {
		var peers []string
		for _, p := range strings.Split(f.peers, ",") {
			if p = strings.TrimSpace(p); p != "" {
				peers = append(peers, p)
			}
		}
		cfg.Sockets = []control.SocketConfig{{Name: "game", Listen: f.listen, Peers: peers}}
	}
	if f.tick > 0 {
		cfg.Tick = f.tick
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if len(cfg.Sockets) == 0 {
		return control.Config{}, errors.New("no sockets: pass -listen or a -config with sockets")
	}
	return cfg, cfg.Validate()
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(cfg.Level()).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, f, log); err != nil {
		log.Error().Err(err).Msg("pingpong failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg control.Config, f flags, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := control.NewMetrics(reg)
	if err != nil {
		return err
	}
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	b := netevent.NewBuilder(
		netevent.WithLogger(log),
		netevent.WithMetrics(metrics),
		netevent.WithProbes(probes),
	)
	if err := b.FromConfig(cfg); err != nil {
		_ = b.Close()
		return err
	}
	name := f.name
	if name == "" {
		name = cfg.Sockets[0].Listen
	}
	var players []*player
	for _, sc := range cfg.Sockets {
		sb, _ := b.SocketBuilder(sc.Name)
		p, err := newPlayer(sb, name, f.interval, log)
		if err != nil {
			_ = b.Close()
			return err
		}
		players = append(players, p)
	}
	node, err := b.Build()
	if err != nil {
		return err
	}

	loop := tick.New(node, cfg.Tick, tick.WithLogger(log))
	for _, p := range players {
		if err := loop.AddHook(tick.PostReceive, p.answer); err != nil {
			return err
		}
		if err := loop.AddHook(tick.PreDispatch, p.serve); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return node.Wait() })
	g.Go(func() error {
		<-ctx.Done()
		loop.Stop()
		log.Debug().Interface("probes", probes.DumpState()).Msg("final state")
		return node.Close()
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}
	return g.Wait()
}
