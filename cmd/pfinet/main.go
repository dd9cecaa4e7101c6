// pfinet daemon -- a userspace TCP/IP translator bridging capability-based
// RPC surfaces to an embedded network stack.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hurdlab/pfinet/internal/admin"
	"github.com/hurdlab/pfinet/internal/config"
	"github.com/hurdlab/pfinet/internal/drivers/ethernet"
	"github.com/hurdlab/pfinet/internal/drivers/loopback"
	"github.com/hurdlab/pfinet/internal/drivers/tun"
	"github.com/hurdlab/pfinet/internal/iface"
	"github.com/hurdlab/pfinet/internal/ingest"
	"github.com/hurdlab/pfinet/internal/metrics"
	"github.com/hurdlab/pfinet/internal/rpc"
	"github.com/hurdlab/pfinet/internal/rpc/transport"
	"github.com/hurdlab/pfinet/internal/stack"
	"github.com/hurdlab/pfinet/internal/stack/refstack"
	"github.com/hurdlab/pfinet/internal/translator"
	appversion "github.com/hurdlab/pfinet/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers and the
// bootstrap listener to drain during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// defaultMTU is applied to every interface this translator builds; there
// is no per-interface MTU negotiation at startup (SIOCSIFMTU can still
// change it later).
const defaultMTU = 1500

// flightRecorderMinAge is the minimum window age for the flight recorder.
const flightRecorderMinAge = 500 * time.Millisecond

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB

// errLinkInputNotImplemented marks the gap between the ingest thread and
// the reference stack: stack.Stack has no link-level packet-input method
// (see internal/stack/stack.go's package doc and DESIGN.md), so a
// stripped frame handed up by the ingest pump has nowhere real to go.
// This is a property of the reference stack, not of the ingest path.
var errLinkInputNotImplemented = errors.New("stack has no link-level input method")

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("pfinet starting",
		slog.String("version", appversion.Version),
		slog.String("bootstrap_socket", cfg.Stack.BootstrapSocket),
		slog.String("admin_addr", cfg.Admin.Addr),
	)

	fr := startFlightRecorder(logger)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	if err := runServers(cfg, collector, reg, logger, *configPath, logLevel, fr, flag.Args()); err != nil {
		logger.Error("pfinet exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("pfinet stopped")
	return 0
}

// runServers builds the translator state (registry, stack, RPC surfaces),
// applies the requested interface configuration, and runs the bootstrap
// RPC listener, admin/metrics HTTP servers, and the ingest pump under an
// errgroup with a signal-aware context, mirroring cmd/gobfd/main.go's
// run()/runServers() split.
func runServers(
	cfg *config.Config,
	collector *metrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
	argv []string,
) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	ifReg := iface.NewRegistry()
	stk := refstack.New()

	family := stack.FamilyINET
	if cfg.Stack.DefaultFamily == "inet6" {
		family = stack.FamilyINET6
	}

	tctx, err := translator.New(ifReg, stk, cfg.Stack.OwnerUID, cfg.Stack.OwnerGID, family)
	if err != nil {
		return fmt.Errorf("build translator context: %w", err)
	}

	pump := ingest.New(ifReg, rxDriverFor, stackInput(logger), logger)
	pump.SetMetrics(collector)

	parsed, err := config.ParseArgs(argv)
	if err != nil {
		return fmt.Errorf("parse interface arguments: %w", err)
	}

	if err := iface.Apply(ifReg, stk, parsed.Interfaces, newDriverFactory(collector, logger)); err != nil {
		return fmt.Errorf("apply interface configuration: %w", err)
	}

	g.Go(func() error {
		return pump.Run(gCtx, linkSource{})
	})

	listener, err := transport.Listen(cfg.Stack.BootstrapSocket)
	if err != nil {
		return fmt.Errorf("listen on bootstrap socket %s: %w", cfg.Stack.BootstrapSocket, err)
	}
	defer listener.Close()

	demux, err := buildDemuxer(gCtx, tctx, ifReg, stop, logger)
	if err != nil {
		return fmt.Errorf("build RPC demuxer: %w", err)
	}

	g.Go(func() error {
		return serveConnections(gCtx, listener, demux, logger)
	})

	extraListeners, err := startFamilyRestrictedNodes(gCtx, g, parsed, tctx, ifReg, stop, logger)
	if err != nil {
		return fmt.Errorf("bind family-restricted control nodes: %w", err)
	}
	for _, l := range extraListeners {
		defer l.Close()
	}

	reload := func() error {
		return reloadConfig(configPath, logLevel, logger)
	}

	adminSrv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           admin.New(tctx, reg, cfg.Metrics.Path, reload, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := newMetricsServer(cfg, reg)

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		allListeners := append([]*transport.Listener{listener}, extraListeners...)
		return gracefulShutdown(gCtx, logger, fr, allListeners, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// newDriverFactory returns the per-interface driver constructor Apply
// calls for each spec, dispatching on the kind Apply already computed
// from the interface's name (spec.md §4.I).
func newDriverFactory(collector *metrics.Collector, logger *slog.Logger) iface.DriverFactory {
	return func(i *iface.Interface) (any, error) {
		switch i.Kind {
		case iface.DriverLoopback:
			i.MTU = defaultMTU
			return loopback.New(i.Name, defaultMTU), nil

		case iface.DriverTUN:
			i.MTU = defaultMTU
			drv := tun.New(i.Name, stackInputTUN(i, logger))
			drv.SetMetrics(collector)
			return drv, nil

		default:
			return openEthernet(i, logger)
		}
	}
}

// openEthernet builds an *ethernet.Driver bound to a raw AF_PACKET
// socket on the named system device, grounded on
// internal/netio/rawsock_linux.go's index-by-name-then-bind pattern.
func openEthernet(i *iface.Interface, logger *slog.Logger) (*ethernet.Driver, error) {
	netIf, err := net.InterfaceByName(i.DeviceName)
	if err != nil {
		return nil, fmt.Errorf("resolve device %q: %w", i.DeviceName, err)
	}

	hw, err := ethernet.HardwareAddr(i.DeviceName)
	if err != nil {
		return nil, fmt.Errorf("read hardware address of %q: %w", i.DeviceName, err)
	}
	i.HWAddr = hw
	i.MTU = defaultMTU

	drv, err := ethernet.Open(defaultMTU, func() (ethernet.Device, error) {
		return ethernet.OpenRawDevice(netIf.Index, i.DeviceName)
	})
	if err != nil {
		return nil, fmt.Errorf("open ethernet device %q: %w", i.DeviceName, err)
	}

	logger.Info("ethernet interface opened",
		slog.String("name", i.Name),
		slog.String("device", i.DeviceName),
		slog.Int("index", netIf.Index),
	)
	return drv, nil
}

// rxDriverFor resolves an interface to the RX-capable driver the ingest
// pump should drive, satisfying ingest.RXDriver. Loopback and TUN
// interfaces have no ingest-thread data path (spec.md §4.F/§4.G) and
// report false.
func rxDriverFor(i *iface.Interface) (ingest.RXDriver, bool) {
	drv, ok := i.DriverState.(*ethernet.Driver)
	return drv, ok
}

// linkSource is the packet-ingest thread's Source (spec.md §4.H). The
// reference stack (internal/stack/refstack) and the ethernet driver's
// Device (internal/drivers/ethernet.Device: Write/Close only) together
// have no link-level receive path yet, so there is nothing to produce a
// real ingest.Delivery from; this blocks until shutdown instead of
// spinning, and is the one place that gap surfaces at runtime. See
// DESIGN.md.
type linkSource struct{}

func (linkSource) Recv(ctx context.Context) (ingest.Delivery, error) {
	<-ctx.Done()
	return ingest.Delivery{}, ctx.Err()
}

// stackInput is the ingest pump's InputFunc: in a complete stack this
// would hand the stripped payload to the embedded stack's link-input
// routine, but stack.Stack exposes no such method (it models only
// socket-level and interface-administrative operations). Logged and
// rejected rather than silently dropped.
func stackInput(logger *slog.Logger) ingest.InputFunc {
	return func(i *iface.Interface, payload []byte) error {
		logger.Debug("discarding inbound frame: no stack link-input method",
			slog.String("iface", i.Name),
			slog.Int("bytes", len(payload)),
		)
		return errLinkInputNotImplemented
	}
}

// stackInputTUN is the analogous stub for a TUN handle's client writes
// (internal/drivers/tun.InputFunc), for the same reason as stackInput.
func stackInputTUN(i *iface.Interface, logger *slog.Logger) tun.InputFunc {
	return func(payload []byte) error {
		logger.Debug("discarding TUN write: no stack link-input method",
			slog.String("iface", i.Name),
			slog.Int("bytes", len(payload)),
		)
		return errLinkInputNotImplemented
	}
}

// -------------------------------------------------------------------------
// RPC surfaces + bootstrap listener
// -------------------------------------------------------------------------

// buildDemuxer wires the four RPC surfaces and their wire adapters into
// one production demuxer (internal/rpc.NewProductionDemuxer).
func buildDemuxer(
	ctx context.Context,
	tctx *translator.Context,
	ifReg *iface.Registry,
	stop context.CancelFunc,
	logger *slog.Logger,
) (*rpc.Demuxer, error) {
	socketSurf, err := rpc.NewSocketSurface(tctx)
	if err != nil {
		return nil, fmt.Errorf("build socket surface: %w", err)
	}
	ioSurf := rpc.NewIOSurface(tctx, socketSurf)

	refreshFilter := func(i *iface.Interface, mtu int) {
		if drv, ok := i.DriverState.(*ethernet.Driver); ok {
			drv.UpdateMTU(mtu)
		}
	}
	ifctlSurf := rpc.NewIfctlSurface(tctx, refreshFilter)

	rootSurf := rpc.NewRootSurface(func(retainBootstrap bool) error {
		logger.Info("root go-away requested",
			slog.Bool("retain_bootstrap", retainBootstrap),
		)
		stop()
		return nil
	})

	return rpc.NewProductionDemuxer(
		rpc.NewIOHandler(ctx, ioSurf),
		rpc.NewSocketHandler(ctx, socketSurf),
		rpc.NewIfctlHandler(ifctlSurf),
		rpc.NewRootHandler(rootSurf, ifReg),
	), nil
}

// startFamilyRestrictedNodes binds the additional control nodes requested
// via -4/-6 (spec.md §6), each serving the same translator state as the
// primary bootstrap node but defaulting newly created sockets to one
// family. Returns the listeners so the caller can close them on shutdown.
func startFamilyRestrictedNodes(
	ctx context.Context,
	g *errgroup.Group,
	parsed config.ParsedArgs,
	tctx *translator.Context,
	ifReg *iface.Registry,
	stop context.CancelFunc,
	logger *slog.Logger,
) ([]*transport.Listener, error) {
	var listeners []*transport.Listener

	bind := func(path string, family stack.Family) error {
		if path == "" {
			return nil
		}
		ln, err := transport.Listen(path)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", path, err)
		}
		listeners = append(listeners, ln)

		demux, err := buildDemuxer(ctx, tctx.WithDefaultFamily(family), ifReg, stop, logger)
		if err != nil {
			return fmt.Errorf("build RPC demuxer for %s: %w", path, err)
		}
		g.Go(func() error {
			return serveConnections(ctx, ln, demux, logger)
		})
		return nil
	}

	if err := bind(parsed.Interface4Path, stack.FamilyINET); err != nil {
		return listeners, err
	}
	if err := bind(parsed.Interface6Path, stack.FamilyINET6); err != nil {
		return listeners, err
	}
	return listeners, nil
}

// serveConnections accepts client connections on the bootstrap listener
// and serves each on its own goroutine until ctx is cancelled, mirroring
// internal/netio/receiver.go's context-aware accept loop.
func serveConnections(ctx context.Context, ln *transport.Listener, demux *rpc.Demuxer, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("serve connections: %w", ctx.Err())
			}
			return fmt.Errorf("accept bootstrap connection: %w", err)
		}

		conn := rpc.NewConn(nc, demux, logger)
		go func() {
			if err := conn.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("connection closed with error", slog.Any("err", err))
			}
		}()
	}
}

// -------------------------------------------------------------------------
// HTTP servers
// -------------------------------------------------------------------------

// startHTTPServers registers the admin and metrics HTTP server goroutines.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	adminSrv *http.Server,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

// newMetricsServer creates a scrape-only HTTP server on its own address,
// distinct from the admin server's bundled /metrics, so metrics scraping
// and operator introspection can sit behind different network policies
// (the same separation cmd/gobfd/main.go draws between its gRPC and
// metrics listeners).
func newMetricsServer(cfg *config.Config, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe creates a TCP listener using the ListenConfig (for noctx
// compliance) and serves HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Daemon goroutines — systemd watchdog + SIGHUP reload
// -------------------------------------------------------------------------

func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

// notifyReady sends READY=1 to systemd.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

// notifyStopping sends STOPPING=1 to systemd.
func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured interval. If watchdog is not configured, returns immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// handleSIGHUP listens for SIGHUP and reloads the ambient configuration
// (log level) until ctx is cancelled. Interface topology is not
// reconfigured on reload — spec.md's mount arguments are a startup-time
// concern; reapplying them live would mean tearing down live drivers,
// which this translator does not attempt.
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			if err := reloadConfig(configPath, logLevel, logger); err != nil {
				logger.Error("failed to reload configuration, keeping current settings",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// reloadConfig loads a fresh configuration from configPath and updates
// the dynamic log level. Used both by SIGHUP and by the admin server's
// POST /v1/reload endpoint.
func reloadConfig(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) error {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
	return nil
}

// -------------------------------------------------------------------------
// Graceful shutdown
// -------------------------------------------------------------------------

// gracefulShutdown signals systemd, stops the flight recorder, closes the
// bootstrap listener, and drains the HTTP servers within shutdownTimeout.
func gracefulShutdown(
	ctx context.Context,
	logger *slog.Logger,
	fr *trace.FlightRecorder,
	listeners []*transport.Listener,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	for _, l := range listeners {
		if err := l.Close(); err != nil {
			logger.Warn("failed to close control-node listener", slog.String("error", err.Error()))
		}
	}

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Flight recorder
// -------------------------------------------------------------------------

// startFlightRecorder initializes and starts the Go 1.26 FlightRecorder
// for post-mortem debugging of translator failures.
func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)
	return fr
}

// -------------------------------------------------------------------------
// Config loading
// -------------------------------------------------------------------------

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
