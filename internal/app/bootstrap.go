package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/engine"
	"crypto_scalper/internal/event"
	"crypto_scalper/internal/execution"
	"crypto_scalper/internal/infra"
	"crypto_scalper/internal/infra/bybit"
	"crypto_scalper/internal/infra/storage"
	"crypto_scalper/internal/telemetry"
)

// Bootstrap orchestrates the application startup and shutdown sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Journal    *storage.Journal
	Metrics    *infra.Metrics
	Stats      *telemetry.Stats
	Hub        *telemetry.Hub
	Server     *telemetry.Server
	Client     *bybit.Client
	Instrument domain.Instrument
	Exchange   domain.Exchange
	Sequencer  *engine.Sequencer
	Workers    []domain.ExchangeWorker

	loopDone   chan struct{}
	serverDone chan error
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs everything that must succeed before quoting starts.
// A missing instrument or an invalid config is fatal.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string, envFiles ...string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath, envFiles...)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping scalper...",
		slog.String("version", cfg.App.Version),
		slog.String("quoting", cfg.Quoting.String()),
		slog.Bool("testnet", cfg.Bybit.Testnet),
	)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	b.Journal = storage.NewJournal(store, cfg.Storage.QueueSize)
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Exchange metadata
	b.Client = bybit.NewClient(cfg.Bybit, cfg.Quoting.Symbol)
	inst, err := b.Client.FetchInstrument(ctx)
	if err != nil {
		return fmt.Errorf("load instrument: %w", err)
	}
	b.Instrument = inst

	if cfg.Quoting.DryRun {
		b.Exchange = execution.NewPaperExchange()
		slog.Warn("⚠️ DRY RUN: orders are simulated")
	} else {
		if cfg.Bybit.SupportsLeverage() {
			if err := b.Client.SetLeverage(ctx, cfg.Bybit.Leverage); err != nil {
				return fmt.Errorf("set leverage: %w", err)
			}
		}
		b.Exchange = b.Client
	}

	// 5. Telemetry sinks
	b.Metrics = infra.NewMetrics()
	b.Hub = telemetry.NewHub(func() []telemetry.Message { return b.Stats.Greeting() })
	b.Stats = telemetry.NewStats(cfg.Quoting.Symbol, b.Hub)

	// 6. Decision loop
	event.Warmup()
	b.Sequencer = engine.NewSequencer(cfg.Quoting, inst, engine.Options{
		Exchange: b.Exchange,
		Sink:     domain.MultiSink{b.Metrics, b.Stats, b.Journal},
		Metrics:  b.Metrics,
	})

	b.Server = telemetry.NewServer(cfg.Telemetry.Addr, cfg.Telemetry.AllowedOrigins, b.Stats, b.Hub, b.Sequencer, b.Metrics.Handler())
	return nil
}

// Start runs the decision loop, the streams and the status server.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Sequencer == nil {
		return errors.New("bootstrap not initialized")
	}
	cfg := b.Config

	b.loopDone = make(chan struct{})
	go func() {
		defer close(b.loopDone)
		b.Sequencer.Run(ctx)
	}()
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	b.serverDone = make(chan error, 1)
	go func() {
		err := b.Server.Start(ctx, time.Duration(cfg.Telemetry.StatsIntervalMS)*time.Millisecond)
		if err != nil {
			slog.Error("Telemetry server failed", slog.Any("error", err))
		}
		b.serverDone <- err
	}()

	public := bybit.NewPublicWorker(cfg.Bybit.PublicWS(), cfg.Quoting.Symbol, b.Sequencer.Submit, b.Metrics)
	if err := public.Connect(ctx); err != nil {
		return fmt.Errorf("connect public stream: %w", err)
	}
	b.Workers = append(b.Workers, public)
	slog.InfoContext(ctx, "✅ PublicWorker started", slog.String("symbol", cfg.Quoting.Symbol))

	if cfg.Bybit.HasCredentials() {
		signer := bybit.NewSigner(cfg.Bybit.APIKey, cfg.Bybit.APISecret, time.Duration(cfg.Bybit.RecvWindowMS)*time.Millisecond)
		private := bybit.NewPrivateWorker(cfg.Bybit.PrivateWS(), signer, cfg.Bybit.Category, cfg.Quoting.Symbol, b.Sequencer.Submit, b.Metrics)
		if err := private.Connect(ctx); err != nil {
			return fmt.Errorf("connect private stream: %w", err)
		}
		b.Workers = append(b.Workers, private)
		slog.InfoContext(ctx, "✅ PrivateWorker started")
	} else {
		slog.WarnContext(ctx, "No API credentials: order updates and fills are not tracked")
	}

	slog.InfoContext(ctx, "✨ Scalper fully operational. Press Ctrl+C to exit.")
	return nil
}

// Shutdown stops the streams, drains the loop, cancels every order and
// flushes the journal. ctx bounds the exchange calls; the loop must already
// be stopping (its context cancelled).
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	var errs []error

	for _, w := range b.Workers {
		w.Disconnect()
	}

	stopped := true
	if b.loopDone != nil {
		select {
		case <-b.loopDone:
		case <-ctx.Done():
			stopped = false
			errs = append(errs, fmt.Errorf("wait for loop: %w", ctx.Err()))
		}
	}
	if b.Sequencer != nil && stopped {
		if err := b.Sequencer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if b.Server != nil && b.serverDone != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry server: %w", err))
		}
		if err := <-b.serverDone; err != nil {
			errs = append(errs, fmt.Errorf("telemetry server: %w", err))
		}
	}

	if b.Journal != nil {
		b.Journal.Close()
		if n := b.Journal.Dropped(); n > 0 {
			slog.Warn("Journal dropped events", slog.Int64("dropped", n))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	slog.Info("👋 Shutdown complete")
	return errors.Join(errs...)
}
