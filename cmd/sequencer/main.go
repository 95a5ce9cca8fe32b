package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/expertec/vev-crm-sub000/internal/api"
	"github.com/expertec/vev-crm-sub000/internal/cache"
	"github.com/expertec/vev-crm-sub000/internal/client"
	"github.com/expertec/vev-crm-sub000/internal/config"
	"github.com/expertec/vev-crm-sub000/internal/policy"
	"github.com/expertec/vev-crm-sub000/internal/repo"
	"github.com/expertec/vev-crm-sub000/internal/resolver"
	"github.com/expertec/vev-crm-sub000/internal/scheduler"
	"github.com/expertec/vev-crm-sub000/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	jobs := repo.NewPostgresJobRepo(db)
	sequences := repo.NewPostgresSequenceRepo(db)
	contacts := repo.NewPostgresContactRepo(db)
	rules := repo.NewPostgresRuleRepo(db)

	gateway := client.NewGatewayClient(cfg.Gateway.URL)

	enroller := service.NewEnroller(jobs, sequences, cfg.Dispatch.ShardCount)
	dispatcher := service.NewDispatcher(jobs, contacts, gateway, cfg.Dispatch.BatchSize, cfg.Dispatch.SendDelay)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		dispatcher.WithDeliveryCache(cache.NewRedisCache(rdb, cfg.Redis.TTL))
	}

	sched, err := scheduler.New(cfg.Dispatch.Interval, dispatcher.ProcessDueJobs)
	if err != nil {
		log.Fatal(err)
	}

	res := resolver.New(rules, resolver.DefaultTables())
	pol := policy.NewSuppression(cfg.Funnel.TopFunnelTriggers)

	h := api.NewHandler(sched, enroller, res, pol, contacts, jobs, cfg.Funnel.DefaultTrigger)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(h)),
	}

	sched.Start()

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
