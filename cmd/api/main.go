package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"mindsage/internal/auth"
	"mindsage/internal/cache"
	"mindsage/internal/config"
	"mindsage/internal/consul"
	"mindsage/internal/docstore"
	"mindsage/internal/events"
	"mindsage/internal/identity"
	"mindsage/internal/logger"
	"mindsage/internal/metrics"
	"mindsage/internal/policy"
	"mindsage/internal/server"
	"mindsage/internal/storage"
	"mindsage/internal/telemetry"
)

const serviceName = "mindsage-api"

func main() {
	log := logger.New(serviceName)
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("API stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, log)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	health := map[string]server.HealthCheck{}

	var store docstore.Store
	if cfg.Database.DSN != "" {
		pool, err := docstore.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := docstore.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
		health["database"] = pool.Ping
		log.Info("Document store ready", "backend", "postgres")
	} else {
		store = docstore.NewMemory()
		log.Warn("DB_DSN not set, using the in-memory document store; data is lost on restart")
	}

	responseCache := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if responseCache != nil {
		defer responseCache.Close()
		health["cache"] = responseCache.Ping
	}

	verifier, err := identity.NewJWTVerifier(identity.VerifierConfig{
		Secret:       cfg.Identity.JWTSecret,
		PublicKeyPEM: cfg.Identity.PublicKeyPEM,
		Issuer:       cfg.Identity.Issuer,
		Audience:     cfg.Identity.Audience,
		Leeway:       cfg.Identity.Leeway,
	})
	if err != nil {
		return err
	}

	var directory identity.UserDirectory
	if cfg.Identity.ServiceKey != "" {
		directory = identity.NewRESTDirectory(cfg.Identity.URL, cfg.Identity.ServiceKey, nil)
	}

	table := policy.ServerTable()
	if cfg.PolicyFile != "" {
		table, err = policy.Load(cfg.PolicyFile)
		if err != nil {
			return err
		}
		log.Info("Loaded route policy", "file", cfg.PolicyFile, "rules", len(table.Rules()))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Brokers != "" {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.ModerationTopic,
			EnableIdempotence: true,
		}, log)
		if err != nil {
			return err
		}
		defer kp.Close()
		publisher = kp
	}

	var objects storage.Service
	if cfg.Storage.Endpoint != "" {
		objects, err = storage.New(ctx, storage.Options{
			Endpoint:       cfg.Storage.Endpoint,
			PublicEndpoint: cfg.Storage.PublicEndpoint,
			AccessKey:      cfg.Storage.AccessKey,
			SecretKey:      cfg.Storage.SecretKey,
			Bucket:         cfg.Storage.Bucket,
			UseSSL:         cfg.Storage.UseSSL,
		}, log)
		if err != nil {
			log.Warn("Object storage unavailable, image uploads disabled", "error", err)
		} else {
			health["storage"] = objects.Health
		}
	}

	m := metrics.New()
	gate := auth.NewGate(auth.Config{
		Verifier:   verifier,
		Directory:  directory,
		Roles:      auth.NewAllowList(cfg.AdminUIDs...),
		Logger:     log,
		OnDecision: m.ObserveAuthDecision,
	})

	deps := server.Deps{
		Logger:      log,
		Gate:        gate,
		Policy:      table,
		Store:       store,
		Storage:     objects,
		Publisher:   publisher,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
		Health:      health,
	}
	if responseCache != nil {
		deps.Cache = responseCache
	}
	apiServer := server.New(cfg.Server, server.NewRouter(deps))

	var registry *consul.Client
	var serviceID string
	if cfg.Consul.Addr != "" {
		registry, err = consul.NewClient(cfg.Consul.Addr, cfg.Consul.Token)
		if err != nil {
			return err
		}
		svc := consul.APIService(cfg.Server.Host, cfg.Server.Port)
		serviceID = svc.ID
		// Clean up a registration left behind by a crash
		_ = registry.Deregister(ctx, serviceID)
		if err := registry.Register(ctx, svc); err != nil {
			return err
		}
		log.Info("Registered with Consul", "service_id", serviceID)
	}

	go func() {
		log.Info("MindSage API listening", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-quit.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if registry != nil {
		if err := registry.Deregister(shutdownCtx, serviceID); err != nil {
			log.Warn("Failed to deregister from Consul", "error", err)
		}
	}

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("MindSage API stopped")
	return nil
}
