package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dkotenko/calarm/internal/config"
	"github.com/dkotenko/calarm/internal/logger"
	"github.com/dkotenko/calarm/internal/mail"
	alarmrepo "github.com/dkotenko/calarm/internal/repository/alarm"
	"github.com/dkotenko/calarm/internal/repository/ledger"
	"github.com/dkotenko/calarm/internal/service/lease"
	"github.com/dkotenko/calarm/internal/service/scheduler"
	"github.com/dkotenko/calarm/internal/service/trigger"
	"github.com/dkotenko/calarm/internal/settings"
)

// Options controls the scheduler daemon process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// HealthAddress provides an optional listen address override for
	// the gRPC health endpoint.
	HealthAddress string
}

// mongoConnectTimeout bounds the initial ping to the storage backend.
const mongoConnectTimeout = 10 * time.Second

// backends bundles the storage-dependent pieces selected at startup.
type backends struct {
	store    alarmrepo.Repository
	lease    lease.Lease
	resolver settings.Resolver
	close    func(context.Context) error
}

// Run wires the daemon together and blocks until the context is
// canceled: configuration, storage backend, mail transport, trigger
// processor, polling scheduler and the gRPC health endpoint.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "calarm-scheduler")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	selected, err := selectBackends(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := selected.close(context.WithoutCancel(ctx)); err != nil {
			logger.WarnKV(ctx, "Failed to close storage backend", "error", err)
		}
	}()

	processor := trigger.NewService(
		selected.store,
		selected.resolver,
		mail.TemplateRenderer{},
		mail.NewSMTPSender(mail.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.Sender,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}),
	)

	mode, err := scheduler.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		return fmt.Errorf("parse scheduler mode: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		PollInterval:     cfg.Scheduler.PollInterval.Std(),
		BatchSize:        cfg.Scheduler.BatchSize,
		InitialJitterMax: cfg.Scheduler.InitialJitterMax.Std(),
		Mode:             mode,
	}, selected.store, selected.lease, processor)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	sched.Start(ctx)
	defer sched.Close()

	healthAddress := cfg.HealthAddress
	if opts.HealthAddress != "" {
		healthAddress = opts.HealthAddress
	}

	if healthAddress == "" {
		logger.Info(ctx, "Health endpoint is disabled, running until interrupted")
		<-ctx.Done()

		return nil
	}

	return serveHealth(ctx, healthAddress)
}

// selectBackends builds the storage-dependent components for the
// configured backend. The memory backend keeps everything in process
// and resolves every recipient to default settings.
func selectBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		logger.Info(ctx, "Using in-memory storage backend")

		return &backends{
			store:    alarmrepo.NewMemoryRepository(),
			lease:    lease.NewLedgerLease(ledger.NewMemoryLedger()),
			resolver: settings.Static{},
			close:    func(context.Context) error { return nil },
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.Storage.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	database := client.Database(cfg.Storage.Mongo.Database)

	store := alarmrepo.NewMongoRepository(database)
	if err := store.EnsureIndexes(connectCtx); err != nil {
		return nil, fmt.Errorf("ensure alarm indexes: %w", err)
	}

	claimLedger := ledger.NewMongoLedger(database)
	if err := claimLedger.EnsureIndexes(connectCtx); err != nil {
		return nil, fmt.Errorf("ensure ledger indexes: %w", err)
	}

	logger.InfoKV(ctx, "Using MongoDB storage backend", "database", cfg.Storage.Mongo.Database)

	return &backends{
		store:    store,
		lease:    lease.NewLedgerLease(claimLedger),
		resolver: settings.NewMongoResolver(database, cfg.ManagedDomains),
		close:    client.Disconnect,
	}, nil
}

// serveHealth runs the gRPC health endpoint until the context ends.
func serveHealth(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	logger.InfoKV(ctx, "Health endpoint listening", "listen_address", address)

	// Done channel is closed after GracefulStop finishes so the daemon
	// blocks until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down health endpoint")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health endpoint: %w", err)
	}

	<-done
	logger.Info(ctx, "Health endpoint stopped")

	return nil
}
