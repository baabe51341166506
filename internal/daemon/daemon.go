package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agora-network/agora/internal/api"
	"github.com/agora-network/agora/internal/app/auction"
	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/incentive"
	"github.com/agora-network/agora/internal/app/query"
	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
	"github.com/agora-network/agora/internal/infra/audit"
	"github.com/agora-network/agora/internal/infra/events"
	"github.com/agora-network/agora/internal/infra/journal"
	"github.com/agora-network/agora/internal/infra/metrics"
	"github.com/agora-network/agora/internal/infra/peermsg"
	"github.com/agora-network/agora/internal/infra/sqlite"
)

// Daemon is the core Agora runtime. It wires together all services.
type Daemon struct {
	Config    Config
	DB        *sqlite.DB // nil when persistence is disabled
	Bus       *events.Bus
	Agents    *directory.Store
	Incentive *incentive.Engine
	Tasks     *registry.Registry
	Market    *auction.Engine
	Queries   *query.Service
	Server    *api.Server

	auditLog *audit.Logger
	journal  *journal.Journal
	peers    *peermsg.Channel
	cancel   context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	d := &Daemon{Config: cfg}

	// Persistence: audit log and learning journal over SQLite.
	if cfg.Storage.Persist {
		dir := cfg.Storage.Dir
		if dir == "" {
			dir = agoraHome()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		d.DB = db
		d.auditLog = audit.NewLogger(db)
		d.journal = journal.New(db)

		if err := db.SetNodeInfo("node_id", cfg.Node.ID); err != nil {
			log.Printf("[daemon] record node id: %v", err)
		}
	}

	d.Bus = events.NewBus()

	// Marketplace core. The incentive engine is both the learning loop
	// and the utility scorer for auctions.
	d.Agents = directory.NewStore()
	d.Incentive = incentive.NewEngine(incentive.DefaultConfig(), d.Agents, nilIfNoJournal(d.journal), d.Bus)
	d.Tasks = registry.New(d.Agents, d.Incentive, d.Bus, nilIfNoAudit(d.auditLog))

	auctionCfg := auction.DefaultConfig()
	if cfg.Market.BidWindowSeconds > 0 {
		auctionCfg.DefaultWindow = time.Duration(cfg.Market.BidWindowSeconds) * time.Second
	}
	auctionCfg.ReplaceBids = cfg.Market.ReplaceBids
	d.Market = auction.New(auctionCfg, d.Tasks, d.Agents, d.Incentive, d.Incentive, d.Bus, nilIfNoAudit(d.auditLog))

	queryCfg := query.DefaultConfig()
	if cfg.Market.CacheTTLSeconds > 0 {
		queryCfg.TTL = time.Duration(cfg.Market.CacheTTLSeconds) * time.Second
	}
	d.Queries = query.New(queryCfg, d.Tasks, d.Agents, d.Market)

	// Peer announcements (no-op without a broker URL).
	peers, err := peermsg.Connect(cfg.Broker.URL)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	d.peers = peers

	// API server.
	srv := api.NewServer(d.Agents, d.Tasks, d.Market, d.Queries)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	if d.auditLog != nil {
		srv.SetAuditLog(d.auditLog)
	}
	d.Server = srv

	return d, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Background consumers of the event bus.
	if d.Config.Telemetry.Prometheus {
		ch, _ := d.Bus.Subscribe(events.DefaultBuffer)
		go metrics.Observe(ch)
	}
	if d.peers != nil {
		ch, _ := d.Bus.Subscribe(events.DefaultBuffer)
		go d.peers.Forward(ch)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	fmt.Printf("Agora serving on http://%s\n", addr)
	if d.Config.Broker.URL != "" {
		fmt.Printf("  Broker: %s\n", d.Config.Broker.URL)
	}
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources. Order matters: the bus stops
// feeding consumers before the writers are drained.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Bus != nil {
		d.Bus.Close()
	}
	if d.peers != nil {
		d.peers.Close()
	}
	if d.auditLog != nil {
		d.auditLog.Close()
	}
	if d.journal != nil {
		d.journal.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// nilIfNoAudit keeps a typed-nil *audit.Logger from leaking into the
// domain.AuditSink interface.
func nilIfNoAudit(l *audit.Logger) domain.AuditSink {
	if l == nil {
		return nil
	}
	return l
}

func nilIfNoJournal(j *journal.Journal) domain.LearningJournal {
	if j == nil {
		return nil
	}
	return j
}
