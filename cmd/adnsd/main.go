package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Protryon/adns/internal/dns/common/clock"
	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/config"
	"github.com/Protryon/adns/internal/dns/domain"
	"github.com/Protryon/adns/internal/dns/gateways/transport"
	"github.com/Protryon/adns/internal/dns/repos/zonestore"
	"github.com/Protryon/adns/internal/dns/services/resolver"
	"github.com/Protryon/adns/internal/dns/services/responder"
	"github.com/Protryon/adns/internal/dns/services/transfer"
	"github.com/Protryon/adns/internal/dns/services/tsig"
	"github.com/Protryon/adns/internal/dns/services/update"
)

const (
	appName = "adnsd"

	defaultConfigPath      = "/etc/adns/config.yaml"
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds the wired server components.
type Application struct {
	config     *config.AppConfig
	hub        *zonestore.Hub
	transports []transport.ServerTransport
	handler    *responder.Responder
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":       appName,
		"env":       cfg.Env,
		"log_level": cfg.LogLevel,
		"udp_addr":  cfg.UDPAddr,
		"tcp_addr":  cfg.TCPAddr,
		"zones":     len(cfg.Zones),
	}, "Starting DNS server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Server failed")
	}

	log.Info(nil, "DNS server stopped gracefully")
}

// buildApplication constructs the storage, service, and transport layers.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	clk := &clock.RealClock{}

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build zone providers: %w", err)
	}

	hub := zonestore.NewHub(providers, logger)
	hub.AlwaysBumpSerial = cfg.AlwaysBumpSerial
	if err := hub.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}

	engine, err := tsig.NewEngine(clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature engine: %w", err)
	}

	handler := responder.New(
		hub,
		engine,
		resolver.New(cfg.Version, logger),
		update.NewProcessor(hub, logger),
		transfer.NewEngine(logger),
		logger,
	)

	udp, err := transport.NewTransport(transport.TransportUDP, cfg.UDPAddr, logger)
	if err != nil {
		return nil, err
	}
	tcp, err := transport.NewTransport(transport.TransportTCP, cfg.TCPAddr, logger)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:     cfg,
		hub:        hub,
		transports: []transport.ServerTransport{udp, tcp},
		handler:    handler,
	}, nil
}

// buildProviders turns each configured zone source into a storage backend.
func buildProviders(ctx context.Context, cfg *config.AppConfig, logger log.Logger) ([]zonestore.Provider, error) {
	var providers []zonestore.Provider
	for _, src := range cfg.Zones {
		switch src.Type {
		case "file":
			providers = append(providers, zonestore.NewFile(src.Name, src.Path, src.Writable, logger))
		case "bolt":
			seed, err := loadSeed(ctx, src, logger)
			if err != nil {
				return nil, err
			}
			bolt, err := zonestore.OpenBolt(src.Name, src.Path, seed)
			if err != nil {
				return nil, fmt.Errorf("zone source %s: %w", src.Name, err)
			}
			providers = append(providers, bolt)
		default:
			return nil, fmt.Errorf("zone source %s: unknown type %s", src.Name, src.Type)
		}
	}
	return providers, nil
}

// loadSeed reads the optional YAML document a bolt database is seeded
// from when empty.
func loadSeed(ctx context.Context, src config.ZoneSource, logger log.Logger) ([]*domain.Zone, error) {
	if src.Seed == "" {
		return nil, nil
	}
	return zonestore.NewFile(src.Name+"-seed", src.Seed, false, logger).Load(ctx)
}

// Run starts the listeners and blocks until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	for _, tr := range app.transports {
		if err := tr.Start(ctx, app.handler); err != nil {
			return fmt.Errorf("failed to start transport on %s: %w", tr.Address(), err)
		}
		log.Info(map[string]any{"address": tr.Address()}, "DNS transport listening")
	}

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for _, tr := range app.transports {
			if err := tr.Stop(); err != nil {
				log.Warn(map[string]any{
					"address": tr.Address(),
					"error":   err.Error(),
				}, "Error during transport shutdown")
			}
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
