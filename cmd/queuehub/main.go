// Command queuehub runs the multi-tenant message queue service: load
// config, connect the configured storage backend, build the API, and
// serve with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/queuehub/queuehub/internal/api"
	"github.com/queuehub/queuehub/internal/auth"
	"github.com/queuehub/queuehub/internal/backend"
	cachebackend "github.com/queuehub/queuehub/internal/backend/cache"
	documentbackend "github.com/queuehub/queuehub/internal/backend/document"
	memorybackend "github.com/queuehub/queuehub/internal/backend/memory"
	relationalbackend "github.com/queuehub/queuehub/internal/backend/relational"
	"github.com/queuehub/queuehub/internal/config"
	"github.com/queuehub/queuehub/internal/logging"
	"github.com/queuehub/queuehub/internal/metrics"
	"github.com/queuehub/queuehub/internal/queue"
	"github.com/queuehub/queuehub/internal/restriction"
)

func main() {
	log := logging.New(slog.LevelInfo)

	cfg, err := config.Load("config.yaml", nil)
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "backendKind", cfg.Backend.Kind, "authMode", cfg.Auth.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, setStore, closer, kind, err := buildBackends(ctx, cfg)
	if err != nil {
		log.Error("failed to build backend", "err", err)
		os.Exit(1)
	}
	log.Info("backend connected", "kind", kind)

	restrictions := restriction.New(setStore)
	recorder := metrics.New()

	core := queue.New(be, kind, queue.WithMetrics(recorder), queue.WithReservedChecker(restrictions))

	tokens := auth.NewTokenProvider(cfg.Auth.TokenSecret, time.Duration(cfg.Auth.TokenDefaultTTLSec)*time.Second)
	access := auth.NewMiddleware(tokens, cfg.Auth.Mode, restrictions, cfg.Auth.AdminToken)

	apiHandler := api.New(core, restrictions, tokens, access, recorder.Handler(), cfg, log)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apiHandler.Router(),
	}

	go func() {
		log.Info("starting server", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "err", err)
	}

	closeIfCloser(log, "backend", be)
	closeIfCloser(log, "restriction store", setStore)
	closeIfCloser(log, "backend connection", closer)

	log.Info("graceful shutdown complete")
}

// closeIfCloser closes res if it holds a connection worth releasing; the
// in-memory variants implement no Close method and are skipped.
func closeIfCloser(log *slog.Logger, name string, res interface{}) {
	c, ok := res.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Error("close error", "resource", name, "err", err)
	}
}

// buildBackends connects the storage backend and restriction set store
// selected by cfg.Backend.Kind. The returned closer, when non-nil, is the
// single underlying connection (redis.Client, mongo.Client) shared by both
// be and setStore for the cache/document variants, so shutdown closes it
// exactly once; the relational variant owns two independent *sql.DB pools
// that close themselves via be/setStore directly, so closer is nil there.
func buildBackends(ctx context.Context, cfg *config.Config) (backend.Backend, backend.SetStore, io.Closer, string, error) {
	switch cfg.Backend.Kind {
	case config.BackendRelational:
		be, err := relationalbackend.Open(ctx, cfg.Backend.Relational.DSN)
		if err != nil {
			return nil, nil, nil, "", err
		}
		set, err := relationalbackend.OpenSetStore(ctx, cfg.Backend.Relational.DSN, "restrictions")
		if err != nil {
			return nil, nil, nil, "", err
		}
		return be, set, nil, "relational", nil

	case config.BackendCache:
		endpoints := config.WithDefaultPort(cfg.Backend.Cache.Endpoints, "6379")
		var rdb *redis.Client
		if cfg.Backend.Cache.Sentinel {
			rdb = redis.NewFailoverClient(&redis.FailoverOptions{
				MasterName:    cfg.Backend.Cache.MasterName,
				SentinelAddrs: endpoints,
				Password:      cfg.Backend.Cache.Password,
			})
		} else {
			rdb = redis.NewClient(&redis.Options{
				Addr:     firstOrEmpty(endpoints),
				Password: cfg.Backend.Cache.Password,
			})
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, "", fmt.Errorf("cache backend: ping: %w", err)
		}
		be := cachebackend.New(rdb)
		set := cachebackend.NewSetStore(rdb, cfg.Backend.Cache.KeyPrefix+"restrictions")
		return be, set, rdb, "cache", nil

	case config.BackendDocument:
		uri := fmt.Sprintf("mongodb://%s", firstOrEmpty(cfg.Backend.Document.Endpoints))
		clientOpts := options.Client().ApplyURI(uri)
		if cfg.Backend.Document.Username != "" {
			clientOpts.SetAuth(options.Credential{
				Username: cfg.Backend.Document.Username,
				Password: cfg.Backend.Document.Password,
			})
		}
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, nil, nil, "", fmt.Errorf("document backend: connect: %w", err)
		}
		be, err := documentbackend.Open(ctx, client, cfg.Backend.Document.Database)
		if err != nil {
			return nil, nil, nil, "", err
		}
		set, err := documentbackend.OpenSetStore(ctx, client, cfg.Backend.Document.Database, "restrictions")
		if err != nil {
			return nil, nil, nil, "", err
		}
		return be, set, mongoCloser{client}, "document", nil

	default:
		return memorybackend.New(), memorybackend.NewSetStore(), nil, "memory", nil
	}
}

// mongoCloser adapts mongo.Client.Disconnect to io.Closer.
type mongoCloser struct{ client *mongo.Client }

func (m mongoCloser) Close() error { return m.client.Disconnect(context.Background()) }

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
