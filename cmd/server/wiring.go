package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"siaga/internal/auth/credential"
	authmetrics "siaga/internal/auth/metrics"
	"siaga/internal/auth/mfa"
	"siaga/internal/auth/models"
	"siaga/internal/auth/password"
	"siaga/internal/auth/service"
	"siaga/internal/auth/session"
	"siaga/internal/auth/store/revocation"
	sessionstore "siaga/internal/auth/store/session"
	"siaga/internal/auth/store/user"
	"siaga/internal/auth/token"
	"siaga/internal/platform/config"
	"siaga/internal/platform/kvstore"
	"siaga/internal/platform/metrics"
	"siaga/internal/platform/redis"
	"siaga/internal/ratelimit/limiter"
	rlmetrics "siaga/internal/ratelimit/metrics"
	ratelimitmw "siaga/internal/ratelimit/middleware"
	"siaga/internal/ratelimit/service/authlockout"
	"siaga/internal/ratelimit/service/requestlimit"
	httptransport "siaga/internal/transport/http"
	"siaga/pkg/platform/audit"
	"siaga/pkg/platform/audit/publishers/security"
	"siaga/pkg/platform/audit/sink/kafka"
	"siaga/pkg/platform/audit/sink/memory"
	"siaga/pkg/platform/circuit"
)

type app struct {
	router  http.Handler
	closers []func(ctx context.Context) error
}

func (a *app) close(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn("failed to release resource", "error", err)
		}
	}
}

// build assembles the security core. Without SIAGA_REDIS_URL every store is
// in-process, which suits a single instance only.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close(log)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := authmetrics.New(reg)
	rateMetrics := rlmetrics.New(reg)
	httpMetrics := metrics.New(reg)

	health := map[string]httptransport.HealthCheck{}

	var kv kvstore.Store
	var sessions session.Store
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fail(fmt.Errorf("connect redis: %w", err))
	}
	if redisClient != nil {
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
		health["redis"] = redisClient.Health
		kv = kvstore.NewRedis(redisClient.Client)
		sessions = sessionstore.NewRedis(redisClient.Client)
	} else {
		log.Warn("SIAGA_REDIS_URL not set, using in-process stores")
		kv = kvstore.NewLocal()
		sessions = sessionstore.New()
	}

	publisher, err := auditPublisher(ctx, cfg, log, reg)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, publisher.Close)

	revoked := revocation.NewList(kv, revocation.WithMetrics(authMetrics))
	sessionOpts := []session.Option{
		session.WithLogger(log),
		session.WithMetrics(authMetrics),
	}
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if _, err := db.ExecContext(ctx, revocation.Schema); err != nil {
			return fail(fmt.Errorf("apply revocation schema: %w", err))
		}
		health["postgres"] = db.PingContext
		sessionOpts = append(sessionOpts, session.WithLedger(revocation.NewLedger(db)))
	}

	users := user.New()
	if cfg.UsersFile != "" {
		seed, err := user.LoadSeedFile(cfg.UsersFile)
		if err != nil {
			return fail(err)
		}
		if err := users.Seed(ctx, seed); err != nil {
			return fail(err)
		}
		log.Info("loaded user accounts", "count", len(seed))
	}

	totp := mfa.NewVerifier(cfg.MFA.Issuer, cfg.MFA.Skew, kv)
	sessionOpts = append(sessionOpts, session.WithProofVerifier(mfa.NewChecker(totp, users)))
	sessionSvc, err := session.New(sessions, revoked, session.Config{
		Timeout:         cfg.Session.Timeout,
		ElevationWindow: cfg.Session.ElevationWindow,
		StoreTimeout:    cfg.Session.StoreTimeout,
	}, sessionOpts...)
	if err != nil {
		return fail(err)
	}

	guard, err := credentialGuard(cfg, kv, log, publisher, authMetrics, rateMetrics)
	if err != nil {
		return fail(err)
	}

	keys, err := token.NewKeyring(cfg.Token.Key, cfg.Token.PreviousKeys...)
	if err != nil {
		return fail(err)
	}
	tokens, err := token.New(keys, token.Config{
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		ResetTTL:   cfg.Token.ResetTTL,
		VerifyTTL:  cfg.Token.VerifyTTL,
		Leeway:     cfg.Token.Leeway,
	}, token.WithLogger(log), token.WithMetrics(authMetrics))
	if err != nil {
		return fail(err)
	}

	roles, err := models.NewRoleTable(cfg.Roles)
	if err != nil {
		return fail(err)
	}

	policy, err := requestlimit.NewPolicy(cfg.RateLimit)
	if err != nil {
		return fail(err)
	}
	lim, err := limiter.New(kv, limiter.WithMetrics(rateMetrics))
	if err != nil {
		return fail(err)
	}
	requests, err := requestlimit.New(lim, policy,
		requestlimit.WithLogger(log),
		requestlimit.WithAuditPublisher(publisher),
	)
	if err != nil {
		return fail(err)
	}

	auth, err := service.New(users, sessionSvc, tokens, guard, revoked, roles,
		service.Config{BindDevice: cfg.Session.BindDevice, BindIP: cfg.Session.BindIP},
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(authMetrics),
		service.WithTracer(otel.Tracer("siaga/auth")),
		service.WithLoginLimiter(requests),
	)
	if err != nil {
		return fail(err)
	}

	rateLimit, err := rateLimitMiddleware(cfg, requests, log, publisher, rateMetrics)
	if err != nil {
		return fail(err)
	}

	a.router = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(auth, log, cfg.Server.MaxBodyBytes),
		Authenticator:  auth,
		RateLimit:      rateLimit,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		Health:         health,
		OperatorToken:  cfg.Server.OperatorToken,
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         log,
	})
	return a, nil
}

// auditPublisher drains to Kafka when brokers are configured, otherwise to
// process memory where events are only visible in the structured log.
func auditPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*security.Publisher, error) {
	var sink audit.Sink = memory.New()
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, kafka.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("connect audit sink: %w", err)
		}
		sink = k
	}
	return security.New(sink, security.WithLogger(log), security.WithRegisterer(reg)), nil
}

func credentialGuard(
	cfg *config.Config,
	kv kvstore.Store,
	log *slog.Logger,
	publisher audit.Publisher,
	authMetrics *authmetrics.Metrics,
	rateMetrics *rlmetrics.Metrics,
) (*credential.Guard, error) {
	blacklist, err := password.LoadBlacklist(cfg.Password.BlacklistFile)
	if err != nil {
		return nil, fmt.Errorf("load password blacklist: %w", err)
	}
	hasher := password.NewHasher(password.Params{
		Memory:      cfg.Password.ArgonMemoryKiB,
		Time:        cfg.Password.ArgonIterations,
		Parallelism: cfg.Password.ArgonParallelism,
		KeyLen:      cfg.Password.ArgonKeyLen,
	}, password.Policy{
		MinLength:           cfg.Password.MinLength,
		RequireUpper:        cfg.Password.RequireUpper,
		RequireLower:        cfg.Password.RequireLower,
		RequireDigit:        cfg.Password.RequireDigit,
		RequireSymbol:       cfg.Password.RequireSymbol,
		ForbiddenSubstrings: cfg.Password.ForbiddenSubstrings,
		Blacklist:           blacklist,
	},
		password.WithMetrics(authMetrics),
		password.WithPool(password.NewPool(cfg.Password.HashWorkers, authMetrics)),
	)

	lockout, err := authlockout.New(kv,
		authlockout.WithConfig(authlockout.Config{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
			TrackIP:   cfg.Lockout.TrackIP,
		}),
		authlockout.WithLogger(log),
		authlockout.WithAuditPublisher(publisher),
		authlockout.WithMetrics(rateMetrics),
	)
	if err != nil {
		return nil, err
	}
	return credential.New(hasher, lockout, credential.WithLogger(log))
}

func rateLimitMiddleware(
	cfg *config.Config,
	requests ratelimitmw.RateLimiter,
	log *slog.Logger,
	publisher audit.Publisher,
	rateMetrics *rlmetrics.Metrics,
) (*ratelimitmw.Middleware, error) {
	fallback, err := ratelimitmw.NewFallbackLimiter(cfg.RateLimit, log)
	if err != nil {
		return nil, err
	}
	return ratelimitmw.New(requests, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithFallback(fallback),
		ratelimitmw.WithBreaker(circuit.New("ratelimit", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2))),
		ratelimitmw.WithAuditPublisher(publisher),
		ratelimitmw.WithMetrics(rateMetrics),
	), nil
}
