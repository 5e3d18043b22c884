package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/blob"
	"github.com/gartstein/staffing/internal/crm/config"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/db"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/handlers"
	"github.com/gartstein/staffing/internal/crm/snapshot"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to a YAML or TOML config file")
	flag.Parse()

	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Fatal("failed to load .env", zap.Error(err))
	}
	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	persister, err := snapshot.NewFilePersister(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open data dir", zap.Error(err))
	}

	opts := []store.Option{
		store.WithLogger(logger),
		store.WithStrictTransitions(cfg.Pipeline.StrictTransitions),
	}
	if !cfg.Seed {
		opts = append(opts, store.WithoutSeed())
	}
	var mirror *db.Mirror
	if dbCfg, ok := db.FromEnv(os.Getenv); ok {
		m, err := db.Open(dbCfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize database mirror", zap.Error(err))
		}
		defer m.Close()
		mirror = m
		opts = append(opts, store.WithMirror(mirror))
	}

	st, err := store.New(ctx, persister, opts...)
	if err != nil {
		logger.Fatal("failed to load store", zap.Error(err))
	}
	defer st.Close()

	if cfg.WatchData {
		go func() {
			if err := persister.Watch(ctx, st.Reload); err != nil {
				logger.Error("snapshot watch stopped", zap.Error(err))
			}
		}()
	}

	objects, fileServer := initBlobStore(cfg, logger)
	proxy := upload.NewProxy(objects, logger, upload.WithPolicies(cfg.UploadPolicies()))

	var producer controller.EventProducer = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
		if err != nil {
			logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
		}
		defer kp.Close()
		producer = kp
	}

	crmSvc := controller.NewCRMService(st, proxy, producer, logger)

	changes, unsubscribe := st.Subscribe(64)
	defer unsubscribe()
	go crmSvc.RelayChanges(ctx, changes)

	restOpts := []handlers.RESTOption{}
	if fileServer != nil {
		restOpts = append(restOpts, handlers.WithFileServer(fileServer))
	}
	if mirror != nil {
		restOpts = append(restOpts, handlers.WithStatusCounter(mirror))
	}
	rest := handlers.NewRESTHandler(crmSvc, logger, restOpts...)

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	server.RegisterGRPCHandler(handlers.NewCRMHandler(crmSvc, logger))
	if err := server.RegisterHTTPHandlers(rest, cfg.JWTSecret); err != nil {
		logger.Fatal("Failed to register HTTP handlers", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server stopped with error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	server.Stop()
	logger.Info("Servers stopped properly")
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// initBlobStore picks the object store. The disk driver also serves its
// objects over HTTP.
func initBlobStore(cfg *config.Config, logger *zap.Logger) (blob.Store, http.Handler) {
	switch cfg.Blob.Driver {
	case config.BlobHTTP:
		return blob.NewHTTPStore(cfg.Blob.BaseURL, cfg.Blob.Token, logger,
			blob.WithMaxRetries(cfg.Blob.MaxRetries)), nil
	default:
		disk, err := blob.NewDiskStore(cfg.Blob.Root, cfg.Blob.BaseURL)
		if err != nil {
			logger.Fatal("failed to initialize blob store", zap.Error(err))
		}
		return disk, http.FileServer(http.Dir(cfg.Blob.Root))
	}
}
