package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/api"
	"github.com/IDGHIM/TaskFlow/config"
	"github.com/IDGHIM/TaskFlow/storage"
	"github.com/IDGHIM/TaskFlow/taskstore"
)

func main() {
	cfg, err := config.Load(os.Getenv("TASKFLOW_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger := log.StandardLogger()
	storeCfg := taskstore.Config{
		Clock:          taskstore.RealClock{Location: loc},
		Metrics:        taskstore.NewMetrics(reg),
		Logger:         logger,
		PersistTimeout: cfg.PersistTimeout,
		SeedDemo:       cfg.SeedDemo,
	}

	var tables *storage.TablePersister
	if cfg.StorageConnectionString != "" {
		tables, err = storage.NewTablePersister(cfg.StorageConnectionString, cfg.TasksTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		storeCfg.Persister = tables
		if cfg.EventsQueue != "" {
			pub, err := storage.NewQueuePublisher(cfg.StorageConnectionString, cfg.EventsQueue)
			if err != nil {
				log.Fatalf("queue: %v", err)
			}
			storeCfg.Publisher = pub
		}
	}

	var deduper api.Deduper
	if cfg.RedisURL != "" {
		rc := redis.NewClient(storage.RedisOptions(cfg.RedisURL))
		defer rc.Close()
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
		if tables != nil {
			storeCfg.Persister = storage.NewCache(tables, rc, cfg.CacheTTL)
		} else {
			storeCfg.Persister = storage.NewCache(nil, rc, 0)
		}
	}
	if storeCfg.Persister == nil {
		log.Warn("no persistence configured; task lists live in memory only")
	}

	auth, err := newAuth(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, taskstore.NewRegistry(storeCfg), auth, deduper, logger)
	api.RegisterMetrics(e, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.ListenAddr()).Info("taskflow api listening")
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

func newAuth(cfg *config.Config) (*api.Auth, error) {
	mode, err := api.ParseAuthMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case api.AuthHS256:
		return api.NewAuth(mode, []byte(cfg.AuthSecret), nil, cfg.AuthAudience, "")
	case api.AuthJWKS:
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.AuthDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		return api.NewAuth(mode, nil, jwks, cfg.AuthAudience, "https://"+cfg.AuthDomain+"/")
	default:
		return api.NewAuth(api.AuthNone, nil, nil, "", "")
	}
}
