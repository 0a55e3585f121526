package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proposals/internal/directory"
	"proposals/internal/notification/dispatcher"
	"proposals/internal/notification/fanout"
	notificationhandler "proposals/internal/notification/handler"
	notificationservice "proposals/internal/notification/service"
	notificationstore "proposals/internal/notification/store"
	"proposals/internal/platform/config"
	"proposals/internal/platform/metrics"
	platformredis "proposals/internal/platform/redis"
	"proposals/internal/platform/tracing"
	proposalhandler "proposals/internal/proposal/handler"
	"proposals/internal/proposal/lifecycle"
	proposalstore "proposals/internal/proposal/store"
	"proposals/migrations"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/audit/recorder"
	auditmemory "proposals/pkg/platform/audit/store/memory"
	auditpostgres "proposals/pkg/platform/audit/store/postgres"
	"proposals/pkg/platform/httputil"
	"proposals/pkg/platform/middleware/auth"
	"proposals/pkg/platform/middleware/request"
	"proposals/pkg/platform/middleware/requesttime"
	"proposals/pkg/platform/tx"
)

type stores struct {
	proposals     lifecycle.ProposalStore
	audit         audit.Store
	notifications interface {
		fanout.Store
		notificationservice.Store
	}
	runner    tx.Runner
	directory directory.Source
}

type app struct {
	router     http.Handler
	dispatcher *dispatcher.Dispatcher
	storage    string
	closers    []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{storage: "memory"}
	var (
		st     stores
		health []func(context.Context) error
	)

	if cfg.UsesPostgres() {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Up(ctx, db); err != nil {
			a.close()
			return nil, err
		}
		st = stores{
			proposals:     proposalstore.NewPostgres(db),
			audit:         auditpostgres.New(db),
			notifications: notificationstore.NewPostgres(db),
			runner:        tx.NewSQLRunner(db, cfg.TxTimeout),
			directory:     directory.NewPostgres(db),
		}
		health = append(health, db.PingContext)
		a.storage = "postgres"
	} else {
		reviewers := make([]id.UserID, 0, len(cfg.ReviewerIDs))
		for _, raw := range cfg.ReviewerIDs {
			reviewer, err := id.ParseUserID(raw)
			if err != nil {
				return nil, fmt.Errorf("REVIEWER_IDS: %w", err)
			}
			reviewers = append(reviewers, reviewer)
		}
		st = stores{
			proposals:     proposalstore.NewInMemoryStore(),
			audit:         auditmemory.NewInMemoryStore(),
			notifications: notificationstore.NewInMemoryStore(),
			runner:        tx.NewMemoryRunner(cfg.TxTimeout),
			directory:     directory.NewStatic(reviewers...),
		}
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		st.directory = directory.NewCached(st.directory, rdb, cfg.Redis.ReviewerTTL, directory.WithLogger(log))
		health = append(health, rdb.Health)
	}

	tracer, err := tracing.New(ctx, cfg.Tracing)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return tracer.Shutdown(flushCtx)
	})
	if tracer.Exporting() {
		log.Info("exporting traces", "endpoint", cfg.Tracing.OTLPEndpoint, "sample_rate", cfg.Tracing.SampleRate)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.dispatcher = dispatcher.New(
		fanout.New(st.notifications, st.directory, fanout.WithLogger(log)),
		dispatcher.WithWorkers(cfg.Notification.Workers),
		dispatcher.WithQueueSize(cfg.Notification.QueueSize),
		dispatcher.WithMaxRetries(cfg.Notification.MaxRetries),
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(dispatcher.NewMetrics(reg)),
	)

	auditor := recorder.New(st.audit,
		recorder.WithLogger(log),
		recorder.WithMetrics(recorder.NewMetrics(reg)),
	)
	authority := lifecycle.New(st.proposals, auditor, st.runner,
		lifecycle.WithNotifier(a.dispatcher),
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(metrics.New(reg)),
		lifecycle.WithTracer(tracer.Tracer("proposals/lifecycle")),
	)
	notifications := notificationservice.New(st.notifications, notificationservice.WithLogger(log))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", healthHandler(health))

	validator := auth.NewHS256Validator(cfg.JWTSigningKey, cfg.JWTIssuer)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, log))
		proposalhandler.New(authority, log).Register(r)
		notificationhandler.New(notifications, log).Register(r)
	})

	a.router = r
	return a, nil
}

func healthHandler(checks []func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
