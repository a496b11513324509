package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/io7m-com/idstore-sub007/internal/config"
	"github.com/io7m-com/idstore-sub007/internal/core"
	"github.com/io7m-com/idstore-sub007/internal/logger"
	logicv1 "github.com/io7m-com/idstore-sub007/internal/logic/v1"
	"github.com/io7m-com/idstore-sub007/internal/mail"
	"github.com/io7m-com/idstore-sub007/internal/ratelimit"
	"github.com/io7m-com/idstore-sub007/internal/session"
	webv1 "github.com/io7m-com/idstore-sub007/internal/web/v1"
	"github.com/io7m-com/idstore-sub007/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Configuration parse failed: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Console)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Msg("Service starting")

	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		tp, err = middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().
				Str("endpoint", cfg.Profiling.Endpoint).
				Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	db, err := core.Connect(context.Background(), cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Sessions live in memory only; a restart logs everyone out.
	userSessions := session.NewUserStore(
		cfg.Sessions.UserTimeout, nil, middleware.SessionsActive.WithLabelValues("user"))
	adminSessions := session.NewAdminStore(
		cfg.Sessions.AdminTimeout, nil, middleware.SessionsActive.WithLabelValues("admin"))
	userSessions.Start()
	adminSessions.Start()

	loginLimiter, resetLimiter, verifyLimiter := buildLimiters(cfg)

	var sender mail.Sender
	if cfg.Mail.SMTPHost != "" {
		sender = mail.NewSMTP(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.From)
		log.Info().Str("host", cfg.Mail.SMTPHost).Msg("Mail delivery via SMTP")
	} else {
		sender = mail.Log{}
		log.Warn().Msg("No SMTP host configured, mail is logged only")
	}

	svc := logicv1.NewService(logicv1.Dependencies{
		UserSessions:       userSessions,
		AdminSessions:      adminSessions,
		LoginLimiter:       loginLimiter,
		ResetLimiter:       resetLimiter,
		VerifyLimiter:      verifyLimiter,
		Mail:               sender,
		PasswordMinLength:  cfg.Password.MinLength,
		VerificationExpiry: cfg.Mail.VerificationExpiry,
		ResetExpiry:        cfg.Mail.ResetExpiry,
	})

	if cfg.Service.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	r.Use(middleware.TracingMiddleware(cfg.Service.Name))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Returns 503 once shutdown has started, to drain traffic before HTTP
	// shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := webv1.NewHandler(svc, db, userSessions, adminSessions)
	handler.RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:    ":" + cfg.Service.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting identity server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Fail readiness first and wait for propagation before closing listeners.
	isShuttingDown.Store(true)
	if delay := cfg.Shutdown.ReadinessDrainDelay; delay > 0 {
		log.Info().Dur("delay", delay).Msg("Readiness drain delay started")
		time.Sleep(delay)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	log.Info().Dur("timeout", cfg.Shutdown.Timeout).Msg("Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	userSessions.Close()
	adminSessions.Close()
	log.Info().Msg("Session stores closed")

	db.Close()
	log.Info().Msg("Database pool closed")

	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}

// buildLimiters selects Redis-backed limiters when a Redis address is
// configured, so replicas share one admission window, and in-memory limiters
// otherwise.
func buildLimiters(cfg *config.Config) (login, reset, verify ratelimit.Limiter) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Rate limiting via Redis")
		return ratelimit.NewRedis(client, cfg.RateLimit.LoginTTL, "login"),
			ratelimit.NewRedis(client, cfg.RateLimit.PasswordResetTTL, "reset"),
			ratelimit.NewRedis(client, cfg.RateLimit.EmailVerificationTTL, "verify")
	}
	return ratelimit.NewMemory(cfg.RateLimit.LoginTTL, nil),
		ratelimit.NewMemory(cfg.RateLimit.PasswordResetTTL, nil),
		ratelimit.NewMemory(cfg.RateLimit.EmailVerificationTTL, nil)
}
